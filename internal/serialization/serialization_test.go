package serialization

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lazylinear/internal/sparse"
)

func testVectors() map[string]*sparse.Vector {
	return map[string]*sparse.Vector{
		"params": sparse.NewVectorFromMap(map[string]float64{
			"foo":        0.25,
			"bar":        -1.5,
			"naïve/word": 1e-3,
		}),
		"optimizer.adagrad.squared": sparse.NewVectorFromMap(map[string]float64{"foo": 2}),
		"empty":                     sparse.NewVector(),
	}
}

func encode(t *testing.T, vectors map[string]*sparse.Vector, h Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, vectors, h))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	h := Header{
		ModelType: ModelTypeLinear,
		ModelID:   "0b1c",
		Metadata:  map[string]string{"source": "test"},
		Checkpoint: &CheckpointMeta{
			Epoch:         12,
			Iteration:     11,
			Loss:          "logistic",
			OptimizerType: "adagrad",
		},
	}
	raw := encode(t, testVectors(), h)

	f, err := Read(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, f.Header.FormatVersion)
	assert.Equal(t, Version, f.Header.LibraryVersion)
	assert.Equal(t, "0b1c", f.Header.ModelID)
	assert.Equal(t, int64(12), f.Header.Checkpoint.Epoch)
	assert.False(t, f.Header.CreatedAt.IsZero())
	assert.Equal(t, []string{"empty", "optimizer.adagrad.squared", "params"}, f.Header.VectorNames())

	assert.True(t, f.HasFlag(FlagHasMetadata))
	assert.True(t, f.HasFlag(FlagHasOptimizer))
	assert.False(t, f.HasFlag(FlagMulticlass))

	for name, want := range testVectors() {
		got, err := f.Vector(name)
		require.NoError(t, err)
		assert.Equal(t, want.ToMap(), got.ToMap(), name)
	}

	_, err = f.Vector("missing")
	assert.ErrorIs(t, err, ErrVectorNotFound)
}

func TestWriteIsDeterministic(t *testing.T) {
	h := Header{ModelType: ModelTypeLinear}
	h.CreatedAt = h.CreatedAt.AddDate(2025, 0, 0)

	assert.Equal(t, encode(t, testVectors(), h), encode(t, testVectors(), h))
}

func TestDataSectionAligned(t *testing.T) {
	raw := encode(t, testVectors(), Header{})

	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	start := uint64(FixedHeaderSize) + headerSize
	start += uint64(padding(int64(start)))

	assert.Zero(t, start%HeaderAlignment)
	assert.Equal(t, uint64(len(raw)), start+dataSize)

	sum, err := ComputeChecksumReader(bytes.NewReader(raw[start:]))
	require.NoError(t, err)
	assert.Equal(t, raw[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])
}

func TestReadRejectsCorruption(t *testing.T) {
	raw := encode(t, testVectors(), Header{})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(raw)
		copy(bad, "NOPE")
		_, err := Read(bytes.NewReader(bad), ReaderOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(raw)
		binary.LittleEndian.PutUint32(bad[4:8], 2)
		_, err := Read(bytes.NewReader(bad), ReaderOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("header size", func(t *testing.T) {
		bad := bytes.Clone(raw)
		binary.LittleEndian.PutUint64(bad[16:24], MaxHeaderSize+1)
		_, err := Read(bytes.NewReader(bad), ReaderOptions{})
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})

	t.Run("checksum", func(t *testing.T) {
		bad := bytes.Clone(raw)
		bad[len(bad)-1] ^= 0xff
		_, err := Read(bytes.NewReader(bad), ReaderOptions{})
		assert.ErrorIs(t, err, ErrChecksumMismatch)

		_, err = Read(bytes.NewReader(bad), ReaderOptions{SkipChecksumValidation: true})
		assert.NoError(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Read(bytes.NewReader(raw[:len(raw)-3]), ReaderOptions{})
		assert.Error(t, err)
	})
}

func TestDecodeVector(t *testing.T) {
	var buf bytes.Buffer
	n, err := encodeVector(&buf, sparse.NewVectorFromMap(map[string]float64{"a": 1, "bb": 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2*recordOverhead+3, buf.Len())

	v, err := decodeVector(buf.Bytes(), 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1, "bb": 2}, v.ToMap())

	_, err = decodeVector(buf.Bytes(), 1)
	assert.ErrorIs(t, err, ErrMalformedRecord, "trailing bytes")

	_, err = decodeVector(buf.Bytes()[:buf.Len()-1], 2)
	assert.ErrorIs(t, err, ErrMalformedRecord, "truncated value")

	_, err = decodeVector(buf.Bytes(), 3)
	assert.ErrorIs(t, err, ErrMalformedRecord, "too many entries")

	_, err = encodeVector(&buf, nil)
	assert.Error(t, err)
}

func TestValidateVectorName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"plain", "params", nil},
		{"class label with slash", "class.a/b.params", nil},
		{"empty", "", ErrInvalidVectorName},
		{"null byte", "a\x00b", ErrInvalidVectorName},
		{"invalid utf8", "a\xffb", ErrInvalidVectorName},
		{"too long", strings.Repeat("x", MaxVectorNameLen+1), ErrVectorNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVectorName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateVectorOffsets(t *testing.T) {
	tests := []struct {
		name    string
		vectors []VectorMeta
		wantErr error
	}{
		{"adjacent", []VectorMeta{{Name: "a", Entries: 1, Offset: 0, Size: 13}, {Name: "b", Entries: 1, Offset: 13, Size: 13}}, nil},
		{"overlap", []VectorMeta{{Name: "a", Offset: 0, Size: 20}, {Name: "b", Offset: 13, Size: 13}}, ErrOffsetOverlap},
		{"out of bounds", []VectorMeta{{Name: "a", Offset: 90, Size: 20}}, ErrOutOfBounds},
		{"negative", []VectorMeta{{Name: "a", Offset: -1, Size: 5}}, ErrNegativeOffset},
		{"too many entries", []VectorMeta{{Name: "a", Entries: 2, Offset: 0, Size: 13}}, ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVectorOffsets(tt.vectors, 100)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestValidateHeaderDuplicates(t *testing.T) {
	h := &Header{Vectors: []VectorMeta{{Name: "a"}, {Name: "a"}}}

	assert.ErrorIs(t, ValidateHeader(h, 0, ValidationNormal), ErrDuplicateVector)
	assert.NoError(t, ValidateHeader(h, 0, ValidationNone))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	h := Header{ModelType: ModelTypeOneVsAll}

	require.NoError(t, WriteFile(path, testVectors(), h))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed into place")

	f, err := ReadFile(path, ReaderOptions{})
	require.NoError(t, err)
	assert.True(t, f.HasFlag(FlagMulticlass))
	assert.Len(t, f.Vectors, 3)

	hdr, err := ReadHeaderFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModelTypeOneVsAll, hdr.ModelType)
	meta, ok := hdr.Vector("params")
	require.True(t, ok)
	assert.Equal(t, 3, meta.Entries)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.born"), ReaderOptions{})
	assert.Error(t, err)
}

func TestWriteRejectsBadName(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, map[string]*sparse.Vector{"": sparse.NewVector()}, Header{})
	assert.ErrorIs(t, err, ErrInvalidVectorName)
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, WriteFile(path, testVectors(), Header{ModelType: ModelTypeLinear}))

	h, err := VerifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModelTypeLinear, h.ModelType)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	flipped := bytes.Clone(raw)
	flipped[len(flipped)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, flipped, 0o600))
	_, err = VerifyFile(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	require.NoError(t, os.WriteFile(path, raw[:len(raw)-4], 0o600))
	_, err = VerifyFile(path)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}
