package domain

import "errors"

// Sentinel errors for the fetch/feature pipeline. Handlers map these to
// HTTP status codes with errors.Is; everything else is a 500.
var (
	// ErrMalformedKey marks a persisted extract name that does not decode
	// into a recognized query shape. Scans skip such entries, they never
	// abort a cache lookup.
	ErrMalformedKey = errors.New("malformed range key")

	// ErrCorruptExtract marks a persisted extract with structurally invalid
	// rows. It always propagates: silently dropping history would corrupt
	// any model trained on the result.
	ErrCorruptExtract = errors.New("corrupt extract")

	// ErrEmptyQueryRegion means zero historical transactions matched the
	// requested box and date interval. A model cannot be fitted on it.
	ErrEmptyQueryRegion = errors.New("no transactions in query region")

	// ErrExternalFetch wraps failures talking to the transaction store or
	// the POI service. No retry is performed at this layer.
	ErrExternalFetch = errors.New("external fetch failed")
)
