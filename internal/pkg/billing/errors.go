package billing

import "errors"

// Error taxonomy for the payment integration. Handlers map these to HTTP
// statuses: signature and metadata failures are terminal (the processor must
// re-sign / the checkout was created wrong), store failures return 5xx so the
// processor redelivers.
var (
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrMissingMetadata  = errors.New("billing: checkout metadata missing required fields")
	ErrNotFound         = errors.New("billing: record not found")
	ErrStoreWrite       = errors.New("billing: store write failed")
)
