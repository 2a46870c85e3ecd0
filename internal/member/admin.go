package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/store"
)

// Writer is the slice of the store used for member maintenance.
type Writer interface {
	CreateMember(ctx context.Context, f store.MemberFields) (*domain.Member, error)
	UpdateMember(ctx context.Context, id string, f store.MemberFields) error
	DeleteMember(ctx context.Context, id string) error
}

// Admin maintains member records. Every successful write invalidates the Directory.
type Admin struct {
	store  Writer
	dir    *Directory
	logger *slog.Logger
}

func NewAdmin(store Writer, dir *Directory, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{store: store, dir: dir, logger: logger}
}

// Add registers a new member with a zero balance.
func (a *Admin) Add(ctx context.Context, f store.MemberFields) (*domain.Member, error) {
	f, err := normalize(f)
	if err != nil {
		return nil, err
	}
	m, err := a.store.CreateMember(ctx, f)
	if err != nil {
		return nil, writeErr(err, f.Code)
	}
	a.dir.Invalidate()
	a.logger.Info("member added", "code", m.Code)
	return m, nil
}

func (a *Admin) Update(ctx context.Context, id string, f store.MemberFields) error {
	f, err := normalize(f)
	if err != nil {
		return err
	}
	if err := a.store.UpdateMember(ctx, id, f); err != nil {
		return writeErr(err, f.Code)
	}
	a.dir.Invalidate()
	return nil
}

// Remove deletes the member together with all of its ledger entries.
func (a *Admin) Remove(ctx context.Context, id string) error {
	if err := a.store.DeleteMember(ctx, id); err != nil {
		return writeErr(err, id)
	}
	a.dir.Invalidate()
	a.logger.Info("member removed", "id", id)
	return nil
}

func normalize(f store.MemberFields) (store.MemberFields, error) {
	f.Code = strings.TrimSpace(f.Code)
	f.Name = strings.TrimSpace(f.Name)
	f.Address = strings.TrimSpace(f.Address)
	if f.Code == "" {
		return f, domain.Invalid(domain.ErrMissingField, "code")
	}
	if f.Name == "" {
		return f, domain.Invalid(domain.ErrMissingField, "name")
	}
	return f, nil
}

func writeErr(err error, key string) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return domain.Invalid(domain.ErrDuplicateCode, key)
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrMemberNotFound
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}
