// internal/api/handler/ledger.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"p2p-lending/internal/api/types"
	"p2p-lending/internal/domain"
	"p2p-lending/internal/service"
	"p2p-lending/internal/util" // For custom errors
)

// DefaultTimeout bounds every request, including collaborator calls made on its behalf.
const DefaultTimeout = 30 * time.Second

// LedgerHandler handles HTTP requests for the lending ledger.
type LedgerHandler struct {
	service service.LedgerService
	logger  *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc service.LedgerService, logger *slog.Logger) *LedgerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHandler{
		service: svc,
		logger:  logger,
	}
}

// Helper function to send JSON responses.
func (h *LedgerHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (h *LedgerHandler) respondWithMessage(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, types.ErrorResponse{Error: message})
}

// respondWithError maps a service error onto a status code and an error body.
func (h *LedgerHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	body := types.ErrorResponse{Error: "internal server error"}

	var amountErr *util.AmountError
	var verifyErr *util.VerificationError

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		body.Error = "invalid input"
	case util.IsError(err, util.ErrInvalidRole):
		statusCode = http.StatusBadRequest
		body.Error = "only borrowers can request loans"
	case util.IsError(err, util.ErrLimitExceeded):
		statusCode = http.StatusBadRequest
		body.Error = util.ErrLimitExceeded.Error()
		if errors.As(err, &amountErr) {
			body.CreditLimit = &amountErr.Available
		}
	case util.IsError(err, util.ErrLoanNotFound):
		statusCode = http.StatusNotFound
		body.Error = "loan not found"
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		body.Error = "user not found"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		body.Error = util.ErrInsufficientFunds.Error()
		if errors.As(err, &amountErr) {
			body.Balance = &amountErr.Available
		}
	case util.IsError(err, util.ErrUnauthorized):
		statusCode = http.StatusForbidden
		body.Error = util.ErrUnauthorized.Error()
	case util.IsError(err, util.ErrVerificationRequired):
		statusCode = http.StatusForbidden
		body.Error = util.ErrVerificationRequired.Error()
	case util.IsError(err, util.ErrAlreadySettled):
		statusCode = http.StatusConflict
		body.Error = util.ErrAlreadySettled.Error()
	case util.IsError(err, util.ErrVerificationFailed):
		statusCode = http.StatusUnprocessableEntity
		body.Error = util.ErrVerificationFailed.Error()
		if errors.As(err, &verifyErr) {
			body.Reason = verifyErr.Reason
		}
	case util.IsError(err, util.ErrUpstreamFailure):
		statusCode = http.StatusBadGateway
		body.Error = "upstream service unavailable"
		h.logger.Warn("Upstream failure", "error", err)
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, body)
}

// decodeBody decodes a JSON object; an empty body decodes to the zero value.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, string) {
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, "amount must be a number"
	}
	if !amount.IsPositive() {
		return decimal.Zero, "amount must be positive"
	}
	return amount, ""
}

func missing(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email string `json:"email"`
}

// Login looks a user up by email.
// POST /login
func (h *LedgerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		h.respondWithMessage(w, http.StatusBadRequest, "email required")
		return
	}

	user, err := h.service.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, user)
}

// GetUser returns a user profile.
// GET /user/{userID}
func (h *LedgerHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.respondWithMessage(w, http.StatusNotFound, "user not found")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, user)
}

// ListLoans returns the loans of one borrower.
// GET /user/{userID}/loans
func (h *LedgerHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.respondWithMessage(w, http.StatusNotFound, "user not found")
		return
	}

	loans, err := h.service.ListLoans(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.LoansResponse{Data: loans, TotalCount: len(loans)})
}

// LoanRequest represents the request body for a loan request.
type LoanRequest struct {
	UserID *int64          `json:"user_id"`
	Amount json.RawMessage `json:"amount"`
}

// RequestLoan originates a loan funded by the investor.
// POST /request_loan
func (h *LedgerHandler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == nil || missing(req.Amount) {
		h.respondWithMessage(w, http.StatusBadRequest, "user_id and amount required")
		return
	}
	amount, msg := parseAmount(req.Amount)
	if msg != "" {
		h.respondWithMessage(w, http.StatusBadRequest, msg)
		return
	}

	loan, err := h.service.OriginateLoan(r.Context(), *req.UserID, amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.LoanResponse{OK: true, Loan: loan})
}

// PayLoanRequest represents the request body for a repayment.
type PayLoanRequest struct {
	UserID *int64 `json:"user_id"`
	LoanID *int64 `json:"loan_id"`
}

// PayLoan settles a loan and returns the borrower's new credit state.
// POST /pay_loan
func (h *LedgerHandler) PayLoan(w http.ResponseWriter, r *http.Request) {
	var req PayLoanRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == nil || req.LoanID == nil {
		h.respondWithMessage(w, http.StatusBadRequest, "user_id and loan_id required")
		return
	}

	user, loan, err := h.service.RepayLoan(r.Context(), *req.UserID, *req.LoanID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.RepaymentResponse{OK: true, User: user, Loan: loan})
}

// VerifyIdentityRequest represents the request body for identity verification.
type VerifyIdentityRequest struct {
	UserID     *int64 `json:"user_id"`
	DocumentID string `json:"document_id"`
}

// VerifyIdentity submits an identity document.
// POST /verify_identity
func (h *LedgerHandler) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	var req VerifyIdentityRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == nil || req.DocumentID == "" {
		h.respondWithMessage(w, http.StatusBadRequest, "user_id and document_id required")
		return
	}

	user, err := h.service.VerifyIdentity(r.Context(), *req.UserID, req.DocumentID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.UserResponse{OK: true, User: user})
}

// WalletRequest represents the request body for deposit and withdraw.
type WalletRequest struct {
	UserID *int64          `json:"user_id"`
	Amount json.RawMessage `json:"amount"`
}

// Deposit moves funds from balance to the wallet partner.
// POST /wallet/deposit
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.walletTransfer(w, r, h.service.Deposit)
}

// Withdraw moves funds back from the wallet partner.
// POST /wallet/withdraw
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.walletTransfer(w, r, h.service.Withdraw)
}

type walletMove func(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.User, error)

func (h *LedgerHandler) walletTransfer(w http.ResponseWriter, r *http.Request, move walletMove) {
	var req WalletRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == nil || missing(req.Amount) {
		h.respondWithMessage(w, http.StatusBadRequest, "user_id and amount required")
		return
	}
	amount, msg := parseAmount(req.Amount)
	if msg != "" {
		h.respondWithMessage(w, http.StatusBadRequest, msg)
		return
	}

	user, err := move(r.Context(), *req.UserID, amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.UserResponse{OK: true, User: user})
}
