package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 3    // sparse records with SHA-256 checksum
	HeaderAlignment = 64   // Data section starts on a 64-byte boundary
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header

	// recordOverhead is the per-record cost besides the key bytes.
	recordOverhead = 4 + 8
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
	FlagMulticlass   uint32 = 1 << 3 // bit 3: one vector set per class
)

// Model types recorded in the header.
const (
	ModelTypeLinear   = "linear"
	ModelTypeOneVsAll = "one_vs_all"
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .born format
	LibraryVersion string            `json:"library_version"`      // Version of the writer
	ModelType      string            `json:"model_type"`           // ModelTypeLinear or ModelTypeOneVsAll
	ModelID        string            `json:"model_id,omitempty"`   // Identity of the saved model
	Classes        []string          `json:"classes,omitempty"`    // Class names of a one-vs-all model
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Vectors        []VectorMeta      `json:"vectors"`              // Vector layout in the data section
	Metadata       map[string]string `json:"metadata,omitempty"`   // Custom metadata
	Checkpoint     *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// CheckpointMeta contains the training state needed to resume a model.
type CheckpointMeta struct {
	Epoch           int64          `json:"epoch"`
	Iteration       int64          `json:"iteration"`
	Loss            string         `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config,omitempty"`
	TrainingMeta    map[string]any `json:"training_meta,omitempty"`
}

// VectorMeta describes one vector region in the data section.
type VectorMeta struct {
	Name    string `json:"name"`    // Vector name (e.g. "params", "class.spam.params")
	Entries int    `json:"entries"` // Number of records
	Offset  int64  `json:"offset"`  // Bytes from the start of the data section
	Size    int64  `json:"size"`    // Size in bytes
}

// Vector returns the metadata of the named vector.
func (h *Header) Vector(name string) (VectorMeta, bool) {
	for _, v := range h.Vectors {
		if v.Name == name {
			return v, true
		}
	}
	return VectorMeta{}, false
}

// VectorNames returns the vector names in file order.
func (h *Header) VectorNames() []string {
	names := make([]string, len(h.Vectors))
	for i, v := range h.Vectors {
		names[i] = v.Name
	}
	return names
}

func padding(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
