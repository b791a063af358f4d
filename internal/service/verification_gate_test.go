// internal/service/verification_gate_test.go
package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

func TestVerificationGate(t *testing.T) {
	ctx := context.Background()
	borrower := &domain.User{ID: 2, Role: domain.RoleBorrower}

	t.Run("NilGateIsNotRequired", func(t *testing.T) {
		var gate *VerificationGate
		assert.False(t, gate.IsRequired())

		ok, reason, err := gate.Verify(ctx, borrower, "AB123456")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, ReasonNotConfigured, reason)
	})

	t.Run("AlreadyVerifiedSkipsCollaborator", func(t *testing.T) {
		verifier := new(MockIdentityVerifier)
		gate := NewVerificationGate(true, verifier, nil)

		ok, reason, err := gate.Verify(ctx, &domain.User{ID: 2, KYCVerified: true}, "AB123456")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ReasonAlreadyVerified, reason)
		verifier.AssertNotCalled(t, "VerifyIdentity", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PassesDecisionThrough", func(t *testing.T) {
		verifier := new(MockIdentityVerifier)
		verifier.On("VerifyIdentity", ctx, int64(2), "AB123456").
			Return(domain.VerificationResult{Verified: false, Reason: "name mismatch"}, nil).Once()
		gate := NewVerificationGate(true, verifier, nil)

		ok, reason, err := gate.Verify(ctx, borrower, "AB123456")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "name mismatch", reason)
		verifier.AssertExpectations(t)
	})

	t.Run("CollaboratorErrorFailsClosed", func(t *testing.T) {
		verifier := new(MockIdentityVerifier)
		verifier.On("VerifyIdentity", ctx, int64(2), "AB123456").
			Return(domain.VerificationResult{Verified: true}, errors.New("timeout")).Once()
		gate := NewVerificationGate(false, verifier, nil)

		ok, reason, err := gate.Verify(ctx, borrower, "AB123456")
		assert.ErrorIs(t, err, util.ErrUpstreamFailure)
		assert.False(t, ok)
		assert.Equal(t, ReasonUnavailable, reason)
	})
}
