package cdn

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogInvalidator stands in when no CDN is configured: it logs the request
// and fabricates a request id so the rest of the pipeline behaves the same.
type LogInvalidator struct{}

func NewLogInvalidator() *LogInvalidator { return &LogInvalidator{} }

func (LogInvalidator) Invalidate(_ context.Context, paths []string) (string, error) {
	requestID := uuid.NewString()
	log.Info().
		Str("request_id", requestID).
		Strs("paths", paths).
		Msg("cdn disabled, invalidation logged only")
	return requestID, nil
}

var _ Invalidator = (*LogInvalidator)(nil)
