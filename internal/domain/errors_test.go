package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"split matches split", SplitFailure("pdftk exited 1", nil), ErrSplit, true},
		{"split does not match lookup", SplitFailure("pdftk exited 1", nil), ErrLookup, false},
		{"wrapped lookup", fmt.Errorf("status: %w", LookupFailure("job abc", nil)), ErrLookup, true},
		{"signature", SignatureMismatch("version 1", nil), ErrSignature, true},
		{"plain error", errors.New("boom"), ErrPoll, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := PaymentGatewayFailure("capture", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[payment_gateway] capture: connection refused", err.Error())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeRegistration, TypeOf(fmt.Errorf("x: %w", RegistrationFailure("task 2", nil))))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.True(t, IsType(PollFailure("p", nil), ErrorTypePoll))
}

func TestAssignmentStatus_Terminal(t *testing.T) {
	assert.True(t, AssignmentSubmitted.Terminal())
	assert.True(t, AssignmentApproved.Terminal())
	assert.False(t, AssignmentAccepted.Terminal())
	assert.False(t, AssignmentRejected.Terminal())
}
