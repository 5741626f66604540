package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Bucket layout constants for histogram definitions.
const (
	// BucketStart1 starts object count buckets at a single row.
	BucketStart1 = 1
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2
	// BucketCount12 covers 1 to 2048 objects.
	BucketCount12 = 12

	// BucketStart1ms starts duration buckets at one millisecond.
	BucketStart1ms = 0.001
	// BucketCount14 covers 1ms to ~8s.
	BucketCount14 = 14
)

// LabelUnknown replaces empty label values.
const LabelUnknown = "unknown"

func labelOrUnknown(v string) string {
	if v == "" {
		return LabelUnknown
	}
	return v
}
