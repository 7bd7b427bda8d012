package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// Version is the library version recorded in written headers.
const Version = "0.1.0"

// Write encodes vectors into w as a .born file.
//
// Vectors are laid out in name order; the Vectors, FormatVersion and
// LibraryVersion fields of header are filled in by Write. A zero CreatedAt
// is set to the current time.
func Write(w io.Writer, vectors map[string]*sparse.Vector, header Header) error {
	names := make([]string, 0, len(vectors))
	for name := range vectors {
		if err := ValidateVectorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	header.LibraryVersion = Version
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	header.Vectors = make([]VectorMeta, 0, len(names))

	var data bytes.Buffer
	for _, name := range names {
		offset := int64(data.Len())
		n, err := encodeVector(&data, vectors[name])
		if err != nil {
			return fmt.Errorf("failed to encode vector %q: %w", name, err)
		}
		header.Vectors = append(header.Vectors, VectorMeta{
			Name:    name,
			Entries: n,
			Offset:  offset,
			Size:    int64(data.Len()) - offset,
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	checksum := ComputeChecksum(data.Bytes())

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	binary.LittleEndian.PutUint32(fixed[8:12], flagsOf(header))
	//nolint:gosec // G115: both sizes are non-negative
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	//nolint:gosec // G115: both sizes are non-negative
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	if pad := padding(int64(FixedHeaderSize + len(headerJSON))); pad > 0 {
		if _, err := bw.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := bw.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write vector data: %w", err)
	}
	return bw.Flush()
}

// WriteFile writes vectors to path. The file is written to a temporary
// sibling first and renamed into place, so readers never see a partial
// model.
func WriteFile(path string, vectors map[string]*sparse.Vector, header Header) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, vectors, header); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func flagsOf(h Header) uint32 {
	var flags uint32
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	for _, v := range h.Vectors {
		if strings.Contains(v.Name, OptimizerPrefix) {
			flags |= FlagHasOptimizer
			break
		}
	}
	if h.ModelType == ModelTypeOneVsAll {
		flags |= FlagMulticlass
	}
	return flags
}

// OptimizerPrefix marks the names of optimizer state vectors.
const OptimizerPrefix = "optimizer."

var errNilVector = errors.New("nil vector")

// encodeVector appends the records of v in key order and returns how many
// were written.
func encodeVector(buf *bytes.Buffer, v *sparse.Vector) (int, error) {
	if v == nil {
		return 0, errNilVector
	}
	var scratch [8]byte
	keys := v.Keys()
	for _, k := range keys {
		if len(k) > MaxKeyLen {
			return 0, fmt.Errorf("%w: key length %d > max %d", ErrMalformedRecord, len(k), MaxKeyLen)
		}
		//nolint:gosec // G115: bounded by MaxKeyLen
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(k)))
		buf.Write(scratch[:4])
		buf.WriteString(k)
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v.Get(k)))
		buf.Write(scratch[:])
	}
	return len(keys), nil
}
