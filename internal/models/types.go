// Package models holds the JSON payloads exchanged over the HTTP API.
package models

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// MemberRequest creates or edits a member.
type MemberRequest struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type WasteTypeRequest struct {
	Name       string `json:"name"`
	PricePerKg int64  `json:"price_per_kg"`
	PhotoURL   string `json:"photo_url"`
}

type SelectMemberRequest struct {
	Code string `json:"code"`
}

// ScanRequest carries a token decoded by the client's QR scanner.
type ScanRequest struct {
	Token string `json:"token"`
}

type AddLineRequest struct {
	WasteTypeID string          `json:"waste_type_id"`
	WeightKg    decimal.Decimal `json:"weight_kg"`
}

// WithdrawalRequest accepts the amount as a JSON number or as the raw text the
// operator typed; validation happens server-side.
type WithdrawalRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (r WithdrawalRequest) AmountText() string {
	if s, err := strconv.Unquote(string(r.Amount)); err == nil {
		return s
	}
	return string(r.Amount)
}

// PostingResponse is returned for every committed deposit or withdrawal.
type PostingResponse struct {
	Entry   domain.LedgerEntry `json:"entry"`
	Message string             `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
