package litestore

import "fmt"

const (
	// SinglePartThreshold is the size below which an upload uses one presigned PUT.
	SinglePartThreshold int64 = 16 << 20
	// MinPartSize is the smallest part of a multipart upload.
	MinPartSize int64 = 16 << 20
	// MaxParts is the hard cap on parts per multipart upload.
	MaxParts int64 = 10000
	// MaxObjectSize is the largest object a multipart upload can produce.
	MaxObjectSize int64 = 5 << 40
)

// PlanParts splits size bytes into upload parts.
//
// Sizes below SinglePartThreshold produce a single part. Larger sizes use
// parts of max(MinPartSize, ceil(size/MaxParts)) bytes, with the final part
// carrying the remainder, so the sizes always sum to size and never exceed
// MaxParts entries.
func PlanParts(size int64) ([]int64, error) {
	if size < 0 {
		return nil, fmt.Errorf("plan parts: negative size %d: %w", size, ErrInvalidInput)
	}
	if size > MaxObjectSize {
		return nil, fmt.Errorf("plan parts: size %d exceeds %d: %w", size, MaxObjectSize, ErrInvalidInput)
	}

	if size < SinglePartThreshold {
		return []int64{size}, nil
	}

	partSize := max(MinPartSize, ceilDiv(size, MaxParts))
	count := ceilDiv(size, partSize)

	sizes := make([]int64, count)
	for i := range sizes {
		sizes[i] = partSize
	}
	sizes[count-1] = size - partSize*(count-1)

	return sizes, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
