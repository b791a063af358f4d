// internal/service/verification_gate.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

// IdentityVerifier is the external identity-verification collaborator.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, userID int64, documentID string) (domain.VerificationResult, error)
}

// Reasons reported by the gate itself.
const (
	ReasonAlreadyVerified = "already verified"
	ReasonNotConfigured   = "identity verification is not configured"
	ReasonUnavailable     = "identity verification service unavailable"
)

// VerificationGate decides whether loan origination needs a verified identity and asks the
// collaborator for a decision. It is stateless: persisting the verified flag is the caller's job.
type VerificationGate struct {
	required bool
	verifier IdentityVerifier
	logger   *slog.Logger
}

// NewVerificationGate creates a gate. A nil verifier makes every verification fail.
func NewVerificationGate(required bool, verifier IdentityVerifier, logger *slog.Logger) *VerificationGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationGate{required: required, verifier: verifier, logger: logger}
}

// IsRequired reports whether origination is blocked for unverified borrowers.
func (g *VerificationGate) IsRequired() bool {
	return g != nil && g.required
}

// Verify returns the decision for user's document. It fails closed: a missing or failing
// collaborator never yields a verified result. Collaborator failures are also returned as an
// error wrapping util.ErrUpstreamFailure.
func (g *VerificationGate) Verify(ctx context.Context, user *domain.User, documentID string) (bool, string, error) {
	if user.KYCVerified {
		return true, ReasonAlreadyVerified, nil
	}
	if g == nil || g.verifier == nil {
		return false, ReasonNotConfigured, nil
	}

	result, err := g.verifier.VerifyIdentity(ctx, user.ID, documentID)
	if err != nil {
		g.logger.Warn("Identity verification call failed", "user_id", user.ID, "error", err)
		if !errors.Is(err, util.ErrUpstreamFailure) {
			err = fmt.Errorf("%w: %w", util.ErrUpstreamFailure, err)
		}
		return false, ReasonUnavailable, err
	}
	if !result.Verified {
		g.logger.Info("Identity verification rejected", "user_id", user.ID, "reason", result.Reason)
	}
	return result.Verified, result.Reason, nil
}
