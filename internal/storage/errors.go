package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/minio/minio-go/v7"
)

// ErrorCode is a machine-readable classification of a storage failure.
type ErrorCode string

const (
	// Configuration errors: retrying cannot help, operator action needed.
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeNoSuchBucket       ErrorCode = "no_such_bucket"
	CodeAccessDenied       ErrorCode = "access_denied"

	// Transient errors: safe to retry with backoff.
	CodeTimeout          ErrorCode = "timeout"
	CodeThrottled        ErrorCode = "throttled"
	CodeServerError      ErrorCode = "server_error"
	CodeChecksumMismatch ErrorCode = "checksum_mismatch"

	// Item-local conditions.
	CodeNotFound ErrorCode = "not_found"

	CodeUnknown ErrorCode = "unknown"
)

// retryableCodes is the whitelist of error classes that enter the backoff
// cycle. Everything else short-circuits to terminal handling.
var retryableCodes = map[ErrorCode]bool{
	CodeTimeout:          true,
	CodeThrottled:        true,
	CodeServerError:      true,
	CodeChecksumMismatch: true,
}

var configCodes = map[ErrorCode]bool{
	CodeInvalidCredentials: true,
	CodeNoSuchBucket:       true,
	CodeAccessDenied:       true,
}

// Error wraps a storage failure with its classification.
type Error struct {
	Op   string
	Key  string
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the classification from an error chain, defaulting to
// unknown.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// RetryableCode reports whether the code belongs to the transient class.
func RetryableCode(code ErrorCode) bool { return retryableCodes[code] }

// IsRetryable reports whether the error is worth retrying with backoff.
func IsRetryable(err error) bool { return retryableCodes[CodeOf(err)] }

// IsConfig reports whether the error is a configuration problem that retries
// cannot fix.
func IsConfig(err error) bool { return configCodes[CodeOf(err)] }

// IsNotFound reports whether the error means the object does not exist.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// classify wraps err with an Op/Key context and a code derived from the
// underlying minio or network failure. A nil err passes through.
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Code: codeFor(err), Err: err}
}

func codeFor(err error) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidSecurity":
		return CodeInvalidCredentials
	case "NoSuchBucket":
		return CodeNoSuchBucket
	case "AccessDenied", "AllAccessDisabled":
		return CodeAccessDenied
	case "NoSuchKey", "NotFound":
		return CodeNotFound
	case "SlowDown", "RequestLimitExceeded", "TooManyRequests":
		return CodeThrottled
	case "RequestTimeout", "RequestTimeTooSkewed":
		return CodeTimeout
	case "InternalError", "ServiceUnavailable":
		return CodeServerError
	case "BadDigest", "XAmzContentSHA256Mismatch", "PreconditionFailed":
		return CodeChecksumMismatch
	}
	if resp.StatusCode >= 500 {
		return CodeServerError
	}
	if resp.StatusCode == 429 {
		return CodeThrottled
	}
	if resp.StatusCode == 404 {
		return CodeNotFound
	}
	return CodeUnknown
}
