package biometric

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Descriptor is a fixed-length real-valued face embedding. The encoder
// decides the dimensionality (128 for the default model); everything in
// this package is length-agnostic as long as both sides agree.
type Descriptor []float64

// DefaultThreshold is the maximum Euclidean distance between a probe and an
// enrolled descriptor that still counts as the same person.
const DefaultThreshold = 0.6

// templateVersion tags encoded templates so the on-disk format can evolve
// without a schema migration.
const templateVersion = 1

var ErrCorruptTemplate = errors.New("corrupt face template")

// Distance returns the Euclidean distance between two descriptors.
func Distance(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("descriptor length mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Confidence maps a match distance to a [0,1] score.
func Confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// EncodeTemplate serializes a descriptor for storage: a version byte, a
// big-endian uint16 dimension count, then one big-endian float64 per
// component.
func EncodeTemplate(d Descriptor) []byte {
	buf := make([]byte, 3+8*len(d))
	buf[0] = templateVersion
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(d)))
	for i, v := range d {
		binary.BigEndian.PutUint64(buf[3+8*i:], math.Float64bits(v))
	}
	return buf
}

// DecodeTemplate is the inverse of EncodeTemplate. A malformed blob means
// the stored row was corrupted outside this process; callers treat that as
// a fatal storage fault, not a failed match.
func DecodeTemplate(b []byte) (Descriptor, error) {
	if len(b) < 3 || b[0] != templateVersion {
		return nil, ErrCorruptTemplate
	}
	dim := int(binary.BigEndian.Uint16(b[1:3]))
	if len(b) != 3+8*dim {
		return nil, ErrCorruptTemplate
	}
	d := make(Descriptor, dim)
	for i := range d {
		d[i] = math.Float64frombits(binary.BigEndian.Uint64(b[3+8*i:]))
	}
	return d, nil
}
