package wizard

import (
	"context"
	"fmt"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// Submitter delivers a completed application.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, data forms.Data) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, sessionID string, data forms.Data) error

func (f SubmitterFunc) Submit(ctx context.Context, sessionID string, data forms.Data) error {
	return f(ctx, sessionID, data)
}

// LogSubmitter only logs the submitted fields.
type LogSubmitter struct {
	Logger logging.Logger
}

func (s LogSubmitter) Submit(ctx context.Context, sessionID string, data forms.Data) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.L(ctx)
	}
	logger.Info("form submitted successfully",
		logging.Session(sessionID),
		logging.Any("form_data", data),
	)
	return nil
}

// SubmissionHandler performs the terminal transition.
type SubmissionHandler struct {
	submitter Submitter
	surface   Surface
	cache     *Cache
	logger    logging.Logger
}

// NewSubmissionHandler creates a handler. A nil submitter logs only.
func NewSubmissionHandler(submitter Submitter, surface Surface, cache *Cache, logger logging.Logger) *SubmissionHandler {
	if submitter == nil {
		submitter = LogSubmitter{}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &SubmissionHandler{submitter: submitter, surface: surface, cache: cache, logger: logger}
}

// Submit hands data to the submitter, then swaps to the success view and
// clears the session. Nothing changes if the submitter fails. Once it has
// accepted Submit returns nil. A failed clear is logged and the entries are
// left to expire.
func (h *SubmissionHandler) Submit(ctx context.Context, sessionID string, data forms.Data) error {
	if err := h.submitter.Submit(ctx, sessionID, data); err != nil {
		return fmt.Errorf("submit application: %w", err)
	}
	h.surface.ShowSuccess()
	if err := h.cache.Clear(ctx); err != nil {
		h.logger.Warn("submitted session not cleared", logging.Err(err))
	}
	return nil
}
