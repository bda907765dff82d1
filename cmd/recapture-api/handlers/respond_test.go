package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.LookupFailure("job x", nil), http.StatusNotFound},
		{domain.ValidationError("bad", nil), http.StatusBadRequest},
		{domain.SignatureMismatch("v1", nil), http.StatusBadRequest},
		{domain.IncompleteError("1 of 3", nil), http.StatusConflict},
		{domain.SplitFailure("pdftk", nil), http.StatusUnprocessableEntity},
		{domain.RegistrationFailure("create", nil), http.StatusBadGateway},
		{domain.PollFailure("poll", nil), http.StatusBadGateway},
		{domain.PaymentGatewayFailure("pay", nil), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", domain.LookupFailure("job x", nil)), http.StatusNotFound},
		{domain.IOError("disk", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestNewWorkerPage(t *testing.T) {
	p := NewWorkerPage("HIT1", "A1", "W1", "https://workersandbox.mturk.com/")
	assert.False(t, p.Preview)
	assert.Equal(t, "/image/HIT1", p.PageURL)
	assert.Equal(t, "https://workersandbox.mturk.com/mturk/externalSubmit", p.SubmitURL)

	p = NewWorkerPage("HIT1", PreviewAssignmentID, "", "")
	assert.True(t, p.Preview)
	assert.Empty(t, p.PageURL)
	assert.Equal(t, DefaultSubmitBase+"/mturk/externalSubmit", p.SubmitURL)
}
