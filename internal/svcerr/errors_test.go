package svcerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"invalid amount is validation", ErrInvalidAmount, IsValidation},
		{"wallet not found is not found", ErrWalletNotFound, IsNotFound},
		{"frozen is conflict", ErrWalletFrozen, IsConflict},
		{"insufficient funds is conflict", ErrInsufficientFunds, IsConflict},
		{"payment initiation is upstream", ErrPaymentInitiation, IsUpstream},
		{"wrapped keeps kind", fmt.Errorf("withdraw W1: %w", ErrInsufficientFunds), IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, IsDomain(tt.err))
		})
	}
}

func TestPersistence(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence(cause)

	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsConflict(err))
	assert.Nil(t, Persistence(nil))
	assert.False(t, IsDomain(cause))
}
