// Package session models one cashier's in-progress transaction: the selected
// member and the deposit lines collected for them.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/wastebank/internal/cart"
	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/guard"
	"github.com/punchamoorthee/wastebank/internal/scan"
)

type Resolver interface {
	ResolveByCode(ctx context.Context, code string) (*domain.Member, error)
}

type Catalog interface {
	Get(ctx context.Context, id string) (*domain.WasteType, error)
}

type Poster interface {
	PostDeposit(ctx context.Context, m *domain.Member, lines []domain.LineItem, operator string) (*domain.LedgerEntry, error)
	PostWithdrawal(ctx context.Context, m *domain.Member, amount int64, operator string) (*domain.LedgerEntry, error)
}

// Deps are shared by every session of a Manager.
type Deps struct {
	Resolver Resolver
	Catalog  Catalog
	Poster   Poster
}

// View is a read-only snapshot of a session.
type View struct {
	ID            string            `json:"id"`
	Member        *domain.Member    `json:"member"`
	Lines         []domain.LineItem `json:"lines"`
	TotalWeightKg decimal.Decimal   `json:"total_weight_kg"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
}

type Session struct {
	ID string

	deps     Deps
	mu       sync.Mutex
	member   *domain.Member
	cart     *cart.Cart
	lastUsed time.Time
}

func newSession(deps Deps) *Session {
	return &Session{
		ID:       uuid.NewString(),
		deps:     deps,
		cart:     cart.New(),
		lastUsed: time.Now(),
	}
}

// SelectMember resolves code and makes it the current member. Any collected
// lines are discarded so they cannot be posted to the wrong member.
func (s *Session) SelectMember(ctx context.Context, code string) (*domain.Member, error) {
	m, err := s.deps.Resolver.ResolveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrMemberNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.member = m
	s.cart.Reset()
	return m, nil
}

// HandleScan treats a scanned token exactly like a typed member code.
func (s *Session) HandleScan(ctx context.Context, ev scan.Event) (*domain.Member, error) {
	return s.SelectMember(ctx, ev.Token)
}

// ClearMember deselects the member and discards all lines.
func (s *Session) ClearMember() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.member = nil
	s.cart.Reset()
}

// AddLine adds weight kilograms of an active waste type at its current price.
func (s *Session) AddLine(ctx context.Context, wasteTypeID string, weight decimal.Decimal) error {
	if err := cart.CheckWeight(weight); err != nil {
		return err
	}
	wt, err := s.deps.Catalog.Get(ctx, wasteTypeID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.member == nil {
		return domain.Invalid(domain.ErrNoMemberSelected, "")
	}
	return s.cart.Add(*wt, weight)
}

func (s *Session) RemoveLine(wasteTypeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.cart.Remove(wasteTypeID)
}

// Deposit posts the collected lines. On success the session starts over; on
// failure the lines stay so the operator can retry.
func (s *Session) Deposit(ctx context.Context, operator string) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.member == nil {
		return nil, domain.Invalid(domain.ErrNoMemberSelected, "")
	}
	entry, err := s.deps.Poster.PostDeposit(ctx, s.member, s.cart.Lines(), operator)
	if err != nil {
		return nil, err
	}
	s.member = nil
	s.cart.Reset()
	return entry, nil
}

// Withdraw checks raw against the selected member's known balance and posts it.
func (s *Session) Withdraw(ctx context.Context, raw string, operator string) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	amount, err := guard.CheckWithdrawal(s.member, raw)
	if err != nil {
		return nil, err
	}
	entry, err := s.deps.Poster.PostWithdrawal(ctx, s.member, amount, operator)
	if err != nil {
		return nil, err
	}
	s.member = nil
	s.cart.Reset()
	return entry, nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{ID: s.ID, Lines: s.cart.Lines()}
	if s.member != nil {
		m := *s.member
		v.Member = &m
	}
	v.TotalWeightKg, v.TotalAmount = s.cart.Totals()
	return v
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
