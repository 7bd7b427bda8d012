package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// ErrMalformedLine is returned for lines that do not follow the
// "label[:weight] name[:value] ..." format.
var ErrMalformedLine = errors.New("malformed instance line")

// maxLineSize bounds a single instance line.
const maxLineSize = 16 << 20

// ParseLine parses one instance.
//
// The first field is the label (a class name for multiclass instances),
// optionally followed by ":weight". Every other field is a feature
// "name[:value]" with value defaulting to 1. Repeated features add up.
func ParseLine(line string, kind Kind) (*Instance, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedLine)
	}

	features := sparse.NewVectorWithCapacity(len(fields) - 1)
	for _, f := range fields[1:] {
		name, value, err := splitValue(f, 1)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("%w: empty feature name in %q", ErrMalformedLine, f)
		}
		if !finite(value) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFeature, f)
		}
		features.Add(name, value)
	}

	return Labeled(features, fields[0], kind)
}

// Labeled builds an instance of the given kind from a "label[:weight]"
// field and its features.
func Labeled(features *sparse.Vector, field string, kind Kind) (*Instance, error) {
	label, weight, err := splitValue(field, 1)
	if err != nil {
		return nil, err
	}

	var inst *Instance
	switch kind {
	case KindBinary, "":
		v, perr := strconv.ParseFloat(label, 64)
		if perr != nil {
			return nil, fmt.Errorf("%w: label %q: %w", ErrMalformedLine, label, perr)
		}
		inst, err = NewBinary(features, v)
	case KindReal:
		v, perr := strconv.ParseFloat(label, 64)
		if perr != nil {
			return nil, fmt.Errorf("%w: label %q: %w", ErrMalformedLine, label, perr)
		}
		inst, err = NewReal(features, v)
	case KindMulticlass:
		inst, err = NewMulticlass(features, label)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidLabel, kind)
	}
	if err != nil {
		return nil, err
	}
	return inst.WithWeight(weight)
}

// splitValue splits "name:value" on the last colon.
func splitValue(field string, def float64) (string, float64, error) {
	i := strings.LastIndexByte(field, ':')
	if i < 0 {
		return field, def, nil
	}
	v, err := strconv.ParseFloat(field[i+1:], 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: value in %q: %w", ErrMalformedLine, field, err)
	}
	return field[:i], v, nil
}

// ParseFunc parses one line into an instance of kind.
type ParseFunc func(line string, kind Kind) (*Instance, error)

// Read parses instances from r, one per line, calling fn for each.
// Blank lines and lines starting with '#' are skipped. Reading stops at the
// first error from parsing or from fn.
func Read(r io.Reader, kind Kind, fn func(*Instance) error) error {
	return ReadWith(r, kind, ParseLine, fn)
}

// ReadWith is Read with a custom line parser.
func ReadWith(r io.Reader, kind Kind, parse ParseFunc, fn func(*Instance) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inst, err := parse(line, kind)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := fn(inst); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read instances: %w", err)
	}
	return nil
}

// ReadAll parses every instance from r.
func ReadAll(r io.Reader, kind Kind) ([]*Instance, error) {
	var out []*Instance
	err := Read(r, kind, func(inst *Instance) error {
		out = append(out, inst)
		return nil
	})
	return out, err
}
