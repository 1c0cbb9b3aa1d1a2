package youtube

import "errors"

// Sentinel errors for video lookups.
var (
	ErrVideoNotFound     = errors.New("youtube: video not found")
	ErrInvalidURL        = errors.New("youtube: invalid URL")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrQuotaExceeded     = errors.New("youtube: api quota exceeded")
	ErrMalformedMetadata = errors.New("youtube: malformed oembed metadata")
)
