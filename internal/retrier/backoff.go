package retrier

import "time"

// MaxRetries is the attempt ceiling; an entry at or past it is purged and
// reported instead of retried.
const MaxRetries = 5

// Delay returns the backoff before attempt n (1-based): base doubled per
// prior attempt.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
