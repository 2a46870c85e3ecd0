package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/store"
)

// Store is the slice of the store backing the waste-type catalog.
type Store interface {
	ListWasteTypes(ctx context.Context) ([]domain.WasteType, error)
	GetWasteType(ctx context.Context, id string) (*domain.WasteType, error)
	CreateWasteType(ctx context.Context, f store.WasteTypeFields) (*domain.WasteType, error)
	UpdateWasteType(ctx context.Context, id string, f store.WasteTypeFields) error
	DeactivateWasteType(ctx context.Context, id string) error
}

type Catalog struct {
	store Store
}

func New(s Store) *Catalog {
	return &Catalog{store: s}
}

// List returns the active waste types, newest first.
func (c *Catalog) List(ctx context.Context) ([]domain.WasteType, error) {
	types, err := c.store.ListWasteTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list waste types: %w", domain.ErrStoreUnavailable, err)
	}
	return types, nil
}

// Get returns an active waste type. Inactive or unknown ids yield ErrWasteTypeNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*domain.WasteType, error) {
	wt, err := c.store.GetWasteType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get waste type: %w", domain.ErrStoreUnavailable, err)
	}
	if wt == nil || !wt.Active {
		return nil, domain.ErrWasteTypeNotFound
	}
	return wt, nil
}

func (c *Catalog) Add(ctx context.Context, f store.WasteTypeFields) (*domain.WasteType, error) {
	f, err := normalize(f)
	if err != nil {
		return nil, err
	}
	wt, err := c.store.CreateWasteType(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return wt, nil
}

// Update edits a waste type. The new price applies to lines added from now
// on; posted entries and lines already in a cart keep the price they carry.
func (c *Catalog) Update(ctx context.Context, id string, f store.WasteTypeFields) error {
	f, err := normalize(f)
	if err != nil {
		return err
	}
	err = c.store.UpdateWasteType(ctx, id, f)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrWasteTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Deactivate soft-deletes a waste type. Past ledger entries keep their snapshot.
func (c *Catalog) Deactivate(ctx context.Context, id string) error {
	err := c.store.DeactivateWasteType(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrWasteTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

func normalize(f store.WasteTypeFields) (store.WasteTypeFields, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.PhotoURL = strings.TrimSpace(f.PhotoURL)
	if f.Name == "" {
		return f, domain.Invalid(domain.ErrMissingField, "name")
	}
	if f.PricePerKg < 0 {
		return f, domain.Invalid(domain.ErrInvalidPrice, f.Name)
	}
	if f.PhotoURL != "" {
		u, err := url.Parse(f.PhotoURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return f, domain.Invalid(domain.ErrInvalidPhotoURL, f.PhotoURL)
		}
	}
	return f, nil
}
