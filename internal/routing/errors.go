package routing

import "errors"

var (
	// ErrNoMatch means no domain or DID matched the destination. It is a
	// valid, non-error outcome: the proxy receives {"success": false}.
	ErrNoMatch = errors.New("no routing entity matched")

	// ErrMalformedInput means the routing event is missing required fields
	// or carries an unparsable URI. The request is rejected.
	ErrMalformedInput = errors.New("malformed routing event")

	// ErrStoreUnavailable means the rule store could not be reached or timed
	// out. It is reported as a service error, never collapsed into
	// ErrNoMatch: a silent no-match would drop calls instead of letting the
	// proxy retry or alert.
	ErrStoreUnavailable = errors.New("rule store unavailable")

	// ErrBadEndpoint means a matched endpoint has no usable address, so a
	// route cannot be built. This is a request error, not a no-match.
	ErrBadEndpoint = errors.New("matched endpoint has no usable address")
)
