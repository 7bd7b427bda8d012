package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// File is a decoded .born file.
type File struct {
	Header  Header
	Flags   uint32
	Vectors map[string]*sparse.Vector
}

// Vector returns the named vector or ErrVectorNotFound.
func (f *File) Vector(name string) (*sparse.Vector, error) {
	v, ok := f.Vectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVectorNotFound, name)
	}
	return v, nil
}

// HasFlag reports whether flag is set in the fixed header.
func (f *File) HasFlag(flag uint32) bool {
	return f.Flags&flag != 0
}

type fixedHeader struct {
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [ChecksumSize]byte
}

func readFixedHeader(r io.Reader) (fixedHeader, error) {
	var fh fixedHeader
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fh, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(buf[0:4]) != MagicBytes {
		return fh, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(buf[4:8]); version != FormatVersion {
		return fh, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	fh.flags = binary.LittleEndian.Uint32(buf[8:12])
	fh.headerSize = binary.LittleEndian.Uint64(buf[16:24])
	fh.dataSize = binary.LittleEndian.Uint64(buf[24:32])
	copy(fh.checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if fh.headerSize > MaxHeaderSize {
		return fh, ErrHeaderTooLarge
	}
	if fh.dataSize > math.MaxInt64 {
		return fh, fmt.Errorf("%w: data size %d", ErrOutOfBounds, fh.dataSize)
	}
	return fh, nil
}

func readHeader(r io.Reader) (fixedHeader, Header, error) {
	var h Header
	fh, err := readFixedHeader(r)
	if err != nil {
		return fh, h, err
	}

	headerJSON := make([]byte, fh.headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return fh, h, fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return fh, h, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	return fh, h, nil
}

// Read decodes a .born file from r.
func Read(r io.Reader, opts ReaderOptions) (*File, error) {
	fh, header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	pad := padding(int64(FixedHeaderSize) + int64(fh.headerSize))
	if _, err := io.CopyN(io.Discard, r, pad); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	//nolint:gosec // G115: checked against MaxInt64 in readFixedHeader
	dataSize := int64(fh.dataSize)
	var data bytes.Buffer
	if _, err := io.CopyN(&data, r, dataSize); err != nil {
		return nil, fmt.Errorf("failed to read vector data: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data.Bytes()), fh.checksum); err != nil {
			return nil, err
		}
	}

	if err := ValidateHeader(&header, dataSize, opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	f := &File{
		Header:  header,
		Flags:   fh.flags,
		Vectors: make(map[string]*sparse.Vector, len(header.Vectors)),
	}
	raw := data.Bytes()
	for _, meta := range header.Vectors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > dataSize {
			return nil, fmt.Errorf("vector %q: %w", meta.Name, ErrOutOfBounds)
		}
		v, err := decodeVector(raw[meta.Offset:meta.Offset+meta.Size], meta.Entries)
		if err != nil {
			return nil, fmt.Errorf("vector %q: %w", meta.Name, err)
		}
		f.Vectors[meta.Name] = v
	}
	return f, nil
}

// ReadFile opens path and decodes it with Read.
func ReadFile(path string, opts ReaderOptions) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Read(file, opts)
}

// ReadHeaderFile returns the header of the file at path without reading
// the vector data.
func ReadHeaderFile(path string) (Header, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	_, h, err := readHeader(file)
	return h, err
}

var errTrailingBytes = errors.New("trailing bytes after last record")

func decodeVector(region []byte, entries int) (*sparse.Vector, error) {
	if entries < 0 || int64(entries)*recordOverhead > int64(len(region)) {
		return nil, fmt.Errorf("%w: %d entries in %d bytes", ErrMalformedRecord, entries, len(region))
	}
	v := sparse.NewVectorWithCapacity(entries)
	pos := 0
	for i := range entries {
		if len(region)-pos < 4 {
			return nil, fmt.Errorf("%w: record %d truncated", ErrMalformedRecord, i)
		}
		keyLen := int(binary.LittleEndian.Uint32(region[pos:]))
		pos += 4
		if keyLen > MaxKeyLen || len(region)-pos < keyLen+8 {
			return nil, fmt.Errorf("%w: record %d truncated", ErrMalformedRecord, i)
		}
		key := string(region[pos : pos+keyLen])
		pos += keyLen
		value := math.Float64frombits(binary.LittleEndian.Uint64(region[pos:]))
		pos += 8
		v.Set(key, value)
	}
	if pos != len(region) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, errTrailingBytes)
	}
	return v, nil
}
