package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
)

func minioErr(code string, status int) error {
	return minio.ErrorResponse{Code: code, StatusCode: status, Message: code}
}

func TestCodeForMinioResponses(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{minioErr("InvalidAccessKeyId", 403), CodeInvalidCredentials},
		{minioErr("SignatureDoesNotMatch", 403), CodeInvalidCredentials},
		{minioErr("NoSuchBucket", 404), CodeNoSuchBucket},
		{minioErr("AccessDenied", 403), CodeAccessDenied},
		{minioErr("NoSuchKey", 404), CodeNotFound},
		{minioErr("SlowDown", 503), CodeThrottled},
		{minioErr("RequestTimeout", 400), CodeTimeout},
		{minioErr("InternalError", 500), CodeServerError},
		{minioErr("BadDigest", 400), CodeChecksumMismatch},
		// Unlisted codes fall back to status classes.
		{minioErr("SomeNewCode", 503), CodeServerError},
		{minioErr("SomeNewCode", 429), CodeThrottled},
		{minioErr("SomeNewCode", 404), CodeNotFound},
		{minioErr("SomeNewCode", 400), CodeUnknown},
		{context.DeadlineExceeded, CodeTimeout},
		{errors.New("plain"), CodeUnknown},
	}
	for _, tc := range cases {
		wrapped := classify("put", "k", tc.err)
		if got := CodeOf(wrapped); got != tc.want {
			t.Errorf("CodeOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRetryablePartition(t *testing.T) {
	retryable := []ErrorCode{CodeTimeout, CodeThrottled, CodeServerError, CodeChecksumMismatch}
	for _, code := range retryable {
		if !RetryableCode(code) {
			t.Errorf("%s should be retryable", code)
		}
		if configCodes[code] {
			t.Errorf("%s must not be a config code", code)
		}
	}

	config := []ErrorCode{CodeInvalidCredentials, CodeNoSuchBucket, CodeAccessDenied}
	for _, code := range config {
		if RetryableCode(code) {
			t.Errorf("%s must not be retryable", code)
		}
	}
	if RetryableCode(CodeNotFound) || RetryableCode(CodeUnknown) {
		t.Error("not_found and unknown must not be retryable")
	}
}

func TestClassifyPreservesChain(t *testing.T) {
	cause := minioErr("AccessDenied", 403)
	err := classify("put", "media/a.jpg", cause)

	if !IsConfig(err) {
		t.Fatal("access denied should classify as config")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatal("classified error should be *Error")
	}
	if se.Op != "put" || se.Key != "media/a.jpg" {
		t.Fatalf("context = %s/%s", se.Op, se.Key)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must stay in the chain")
	}

	// Wrapping through fmt keeps the classification reachable.
	wrapped := fmt.Errorf("upload original: %w", err)
	if CodeOf(wrapped) != CodeAccessDenied {
		t.Fatalf("CodeOf(wrapped) = %s", CodeOf(wrapped))
	}
}

func TestClassifyNilPassesThrough(t *testing.T) {
	if err := classify("put", "k", nil); err != nil {
		t.Fatalf("classify(nil) = %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(classify("head", "k", minioErr("NoSuchKey", 404))) {
		t.Fatal("NoSuchKey should be not-found")
	}
	if IsNotFound(classify("head", "k", minioErr("AccessDenied", 403))) {
		t.Fatal("AccessDenied is not not-found")
	}
}
