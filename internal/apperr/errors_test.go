package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("extract intent: %w", New(KindExtractionUnavailable, "backend unreachable", cause))

	assert.Equal(t, KindExtractionUnavailable, KindOf(err))
	assert.True(t, Is(err, KindExtractionUnavailable))
	assert.False(t, Is(err, KindNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "EXTRACTION_UNAVAILABLE: backend unreachable")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindValidation))
}
