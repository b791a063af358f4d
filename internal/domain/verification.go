// internal/domain/verification.go
package domain

// VerificationResult is the verification partner's decision on one identity document.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason"`
}
