package store

import (
	"context"
	"errors"
	"time"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

var (
	// ErrConflict is returned by Commit when the member balance moved since it was read.
	ErrConflict = errors.New("balance changed concurrently")
	// ErrDuplicate is returned when a unique key (member code, operator email) is taken.
	ErrDuplicate = errors.New("duplicate key")
	ErrNotFound  = errors.New("record not found")
)

// BalanceUpdate sets a member balance, guarded by the balance the caller read.
type BalanceUpdate struct {
	MemberID string
	Expected int64
	New      int64
}

// Batch is applied atomically: the ledger entry and the balance update become
// visible together or not at all.
type Batch struct {
	Entry   domain.LedgerEntry
	Balance BalanceUpdate
}

// EntryFilter narrows ledger retrieval. Zero values mean "no constraint".
type EntryFilter struct {
	MemberCode string
	From       time.Time
	To         time.Time
}

// MemberFields are the operator-editable member attributes.
type MemberFields struct {
	Code    string
	Name    string
	Address string
}

// WasteTypeFields are the operator-editable catalog attributes.
type WasteTypeFields struct {
	Name       string
	PricePerKg int64
	PhotoURL   string
}

// Store is the persistence boundary. Single-record lookups return (nil, nil) when absent.
type Store interface {
	ListMembers(ctx context.Context) ([]domain.Member, error)
	GetMember(ctx context.Context, id string) (*domain.Member, error)
	FindMemberByCode(ctx context.Context, code string) (*domain.Member, error)
	CreateMember(ctx context.Context, f MemberFields) (*domain.Member, error)
	UpdateMember(ctx context.Context, id string, f MemberFields) error
	// DeleteMember removes the member and every ledger entry carrying its code.
	DeleteMember(ctx context.Context, id string) error

	ListWasteTypes(ctx context.Context) ([]domain.WasteType, error)
	GetWasteType(ctx context.Context, id string) (*domain.WasteType, error)
	CreateWasteType(ctx context.Context, f WasteTypeFields) (*domain.WasteType, error)
	UpdateWasteType(ctx context.Context, id string, f WasteTypeFields) error
	DeactivateWasteType(ctx context.Context, id string) error

	ListEntries(ctx context.Context, f EntryFilter) ([]domain.LedgerEntry, error)
	// Commit writes b atomically and returns the new ledger entry id.
	Commit(ctx context.Context, b Batch) (string, error)

	FindOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error)
	CreateOperator(ctx context.Context, email, passwordHash string) (*domain.Operator, error)
}

func (f EntryFilter) match(e domain.LedgerEntry) bool {
	if f.MemberCode != "" && e.MemberCode != f.MemberCode {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
