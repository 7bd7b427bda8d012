package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeChecksum returns the SHA-256 of a data section.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader hashes everything read from r.
func ComputeChecksumReader(r io.Reader) ([ChecksumSize]byte, error) {
	var sum [ChecksumSize]byte
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum wraps ErrChecksumMismatch with both sums.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed == stored {
		return nil
	}
	return fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch,
		hex.EncodeToString(stored[:8]), hex.EncodeToString(computed[:8]))
}

// VerifyFile checks the data section of the file at path against its
// stored checksum without decoding any vector.
func VerifyFile(path string) (Header, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	fh, h, err := readHeader(file)
	if err != nil {
		return h, err
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	if _, err := io.CopyN(io.Discard, file, padding(int64(FixedHeaderSize)+int64(fh.headerSize))); err != nil {
		return h, fmt.Errorf("failed to skip padding: %w", err)
	}

	//nolint:gosec // G115: checked against MaxInt64 in readFixedHeader
	dataSize := int64(fh.dataSize)
	data := io.LimitReader(file, dataSize)
	counter := &countingReader{r: data}
	sum, err := ComputeChecksumReader(counter)
	if err != nil {
		return h, fmt.Errorf("failed to read vector data: %w", err)
	}
	if counter.n != dataSize {
		return h, fmt.Errorf("%w: data section has %d of %d bytes", ErrOutOfBounds, counter.n, dataSize)
	}
	return h, ValidateChecksum(sum, fh.checksum)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
