package ytresolve

import (
	"ytresolve/internal/retry"
	"ytresolve/storage"
	"ytresolve/youtube"
)

// Error handling types exported for library users.
//
// All error types support the standard error handling patterns:
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, ytresolve.ErrVideoNotFound) {
//		fmt.Println("video not found")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var storErr *ytresolve.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s: %v\n", storErr.Op, storErr.Entity, storErr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrVideoNotFound indicates the video does not exist or was removed.
	ErrVideoNotFound = youtube.ErrVideoNotFound
	// ErrInvalidURL indicates the provided URL is not a usable YouTube URL.
	ErrInvalidURL = youtube.ErrInvalidURL
	// ErrNetworkTimeout indicates a network timeout occurred.
	ErrNetworkTimeout = youtube.ErrNetworkTimeout
	// ErrQuotaExceeded indicates the Data API quota was exhausted.
	ErrQuotaExceeded = youtube.ErrQuotaExceeded
	// ErrMalformedMetadata indicates the metadata probe returned an unusable body.
	ErrMalformedMetadata = youtube.ErrMalformedMetadata

	// Storage errors
	// ErrNotFound indicates an entity was not found in storage.
	ErrNotFound = storage.ErrNotFound
	// ErrAlreadyExists indicates an entity already exists in storage.
	ErrAlreadyExists = storage.ErrAlreadyExists
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = storage.ErrInvalidInput
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsRetryable determines if an error should be retried.
// It returns false for permanent errors like ErrVideoNotFound.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
