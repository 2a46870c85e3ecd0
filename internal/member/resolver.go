package member

import (
	"context"
	"fmt"
	"strings"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

// Finder is the slice of the store the Resolver reads from.
type Finder interface {
	FindMemberByCode(ctx context.Context, code string) (*domain.Member, error)
}

// Resolver looks members up by code directly against the store, bypassing the
// Directory cache so balance-sensitive flows see current data.
type Resolver struct {
	store Finder
}

func NewResolver(store Finder) *Resolver {
	return &Resolver{store: store}
}

// ResolveByCode returns (nil, nil) when no member carries code.
// Blank codes never reach the store; surrounding whitespace is ignored.
func (r *Resolver) ResolveByCode(ctx context.Context, code string) (*domain.Member, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	m, err := r.store.FindMemberByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: find member %q: %w", domain.ErrStoreUnavailable, code, err)
	}
	return m, nil
}
