package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/catalog"
	"maitred/internal/models"
	"maitred/internal/monitoring"
	"maitred/internal/retrieval"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Retriever supplies candidates for a message
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, text string, limit int) ([]retrieval.Candidate, error)
}

// Store persists extraction attempts
type Store interface {
	CreateIntent(ctx context.Context, intent *models.OrderIntent) error
}

// Config tunes the extractor
type Config struct {
	Timeout        time.Duration
	CandidateLimit int
	// RetryInterval is the initial backoff before the single retry
	RetryInterval time.Duration
}

// Extractor runs retrieval, the backend and validation, and records every attempt
type Extractor struct {
	retriever Retriever
	catalog   catalog.Catalog
	backend   Backend
	store     Store
	cfg       Config
	metrics   *monitoring.Collector
	log       zerolog.Logger
}

// New creates an extractor. backend may be nil, in which case every attempt that
// reaches the backend is recorded as unavailable.
func New(retriever Retriever, cat catalog.Catalog, backend Backend, store Store, cfg Config, metrics *monitoring.Collector, log zerolog.Logger) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	return &Extractor{
		retriever: retriever,
		catalog:   cat,
		backend:   backend,
		store:     store,
		cfg:       cfg,
		metrics:   metrics,
		log:       log.With().Str("component", "extraction").Logger(),
	}
}

// Extract produces a validated intent for in.Text. When the backend cannot be
// reached the intent is still returned, together with an EXTRACTION_UNAVAILABLE error.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Intent, error) {
	candidates, err := e.retriever.Retrieve(ctx, in.TenantID, in.Text, e.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	intent := &Intent{
		ID:         uuid.New().String(),
		Candidates: candidates,
	}
	if e.backend != nil {
		intent.ModelID = e.backend.ModelID()
	}

	if len(candidates) == 0 {
		intent.Status = models.IntentStatusNoCandidates
		e.metrics.RecordExtraction(string(intent.Status), 0)
		return intent, e.persist(ctx, in, intent)
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.MenuItemID
	}
	snap, err := catalog.Take(ctx, e.catalog, in.TenantID, ids)
	if err != nil {
		return nil, err
	}
	intent.Snapshot = snap

	start := time.Now()
	raw, err := e.callBackend(ctx, Request{
		Text:       in.Text,
		History:    in.History,
		Candidates: candidates,
		Snapshot:   snap,
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		v := Validate(raw, candidates, snap)
		for _, id := range v.Inconsistent {
			e.log.Warn().
				Str("kind", string(apperr.KindCatalogInconsistency)).
				Str("tenant", in.TenantID).
				Str("menu_item", id).
				Msg("candidate missing from catalog snapshot")
		}
		intent.Status = models.IntentStatusOK
		intent.Items = v.Items
		intent.Confidence = v.Confidence
		intent.Warnings = v.Warnings

	case errors.Is(err, ErrMalformed):
		e.log.Warn().Err(err).Str("tenant", in.TenantID).Str("conversation", in.ConversationID).Msg("extraction response rejected")
		intent.Status = models.IntentStatusFailed
		intent.Warnings = []string{err.Error()}

	default:
		e.log.Warn().Err(err).Str("tenant", in.TenantID).Str("conversation", in.ConversationID).Msg("extraction backend unavailable")
		intent.Status = models.IntentStatusUnavailable
		intent.Warnings = []string{err.Error()}
		e.metrics.RecordExtraction(string(intent.Status), elapsed)
		if perr := e.persist(ctx, in, intent); perr != nil {
			return intent, perr
		}
		return intent, apperr.New(apperr.KindExtractionUnavailable, "extraction backend", err)
	}

	e.metrics.RecordExtraction(string(intent.Status), elapsed)
	return intent, e.persist(ctx, in, intent)
}

// callBackend bounds each attempt by the timeout and retries a transient failure once
func (e *Extractor) callBackend(ctx context.Context, req Request) (*RawResult, error) {
	if e.backend == nil {
		return nil, ErrUnavailable
	}

	var result *RawResult
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		raw, err := e.backend.Extract(attemptCtx, req)
		if err != nil {
			if errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnavailable) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = raw
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInterval
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Extractor) persist(ctx context.Context, in Input, intent *Intent) error {
	items := make(models.ExtractedItems, len(intent.Items))
	for i, item := range intent.Items {
		items[i] = item.ExtractedItem
	}
	record := &models.OrderIntent{
		ID:             intent.ID,
		TenantID:       in.TenantID,
		ConversationID: in.ConversationID,
		RawText:        in.Text,
		Items:          items,
		Confidence:     intent.Confidence,
		ModelID:        intent.ModelID,
		Status:         string(intent.Status),
		Warnings:       intent.Warnings,
		Feedback:       string(models.FeedbackUnset),
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.CreateIntent(ctx, record); err != nil {
		return fmt.Errorf("persist intent: %w", err)
	}
	return nil
}
