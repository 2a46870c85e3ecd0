package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownOperator is stamped on ledger entries when no operator identity is available.
const UnknownOperator = "System"

// EntryKind distinguishes the two ledger entry flavours.
type EntryKind string

const (
	KindDeposit    EntryKind = "deposit"
	KindWithdrawal EntryKind = "withdrawal"
)

// Member is a waste-bank customer (nasabah) and their running balance.
type Member struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WasteType is a catalog entry priced per kilogram.
// Inactive types are soft-deleted and not offered for new lines.
type WasteType struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PricePerKg int64     `json:"price_per_kg"`
	PhotoURL   string    `json:"photo_url"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LineItem is one waste type within a deposit.
// Subtotal always equals WeightKg * PricePerKg of every contribution merged into it.
type LineItem struct {
	WasteTypeID   string          `json:"waste_type_id"`
	WasteTypeName string          `json:"waste_type_name"`
	WeightKg      decimal.Decimal `json:"weight_kg"`
	PricePerKg    int64           `json:"price_per_kg"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// LedgerEntry is the immutable record of a posted transaction.
// TotalAmount is positive for deposits and negative for withdrawals.
type LedgerEntry struct {
	ID            string          `json:"id"`
	MemberCode    string          `json:"member_code"`
	MemberName    string          `json:"member_name"`
	Timestamp     time.Time       `json:"timestamp"`
	Kind          EntryKind       `json:"kind"`
	TotalAmount   int64           `json:"total_amount"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	Items         []LineItem      `json:"items"`
	Operator      string          `json:"operator"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Operator is a registered cashier allowed to post transactions.
type Operator struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
