package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		NotFound:                  http.StatusNotFound,
		MalformedPayload:          http.StatusBadRequest,
		InvalidSignature:          http.StatusBadRequest,
		PaymentNotCompleted:       http.StatusBadRequest,
		PaymentVerificationFailed: http.StatusBadRequest,
		GatewayUnavailable:        http.StatusServiceUnavailable,
		SlotConflict:              http.StatusConflict,
		InvalidStatus:             http.StatusBadRequest,
		Forbidden:                 http.StatusForbidden,
		Internal:                  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Status(), string(kind))
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, GatewayUnavailable.Retryable())
	assert.True(t, ReconciliationInProgress.Retryable())
	assert.False(t, SlotConflict.Retryable())
	assert.False(t, InvalidSignature.Retryable())
}

func TestWrapKeepsCause(t *testing.T) {
	err := fmt.Errorf("reconcile: %w", Wrap(NotFound, "payment not found", sql.ErrNoRows))

	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, SlotConflict))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, "payment not found", Message(err))
}

func TestUnclassifiedIsInternal(t *testing.T) {
	err := errors.New("dial tcp: connection refused")

	assert.Equal(t, Internal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
}
