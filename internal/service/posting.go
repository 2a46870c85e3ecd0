package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/wastebank/internal/cart"
	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/guard"
	"github.com/punchamoorthee/wastebank/internal/store"
)

var (
	postingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wastebank_postings_total",
		Help: "Ledger postings attempted, labeled by kind and result",
	}, []string{"kind", "result"})

	postedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wastebank_posted_amount_total",
		Help: "Absolute currency amount successfully posted, labeled by kind",
	}, []string{"kind"})
)

// ErrConflict is surfaced when another operator moved the balance between our read and write.
var ErrConflict = errors.New("balance changed by another operator, please retry")

// MemberResolver re-reads a member from the store.
type MemberResolver interface {
	ResolveByCode(ctx context.Context, code string) (*domain.Member, error)
}

// Committer applies a batch atomically.
type Committer interface {
	Commit(ctx context.Context, b store.Batch) (string, error)
}

// Invalidator is notified after every successful posting.
type Invalidator interface {
	Invalidate()
}

// PostingService writes ledger entries and member balances as one atomic unit.
type PostingService struct {
	resolver MemberResolver
	store    Committer
	cache    Invalidator
	logger   *slog.Logger
	now      func() time.Time
}

func NewPostingService(resolver MemberResolver, s Committer, cache Invalidator, logger *slog.Logger) *PostingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostingService{
		resolver: resolver,
		store:    s,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// PostDeposit credits the member with the sum of lines.
func (s *PostingService) PostDeposit(ctx context.Context, m *domain.Member, lines []domain.LineItem, operator string) (*domain.LedgerEntry, error) {
	if m == nil {
		return nil, domain.Invalid(domain.ErrNoMemberSelected, "")
	}
	if len(lines) == 0 {
		return nil, domain.Invalid(domain.ErrEmptyTransaction, "")
	}

	fresh, err := s.reload(ctx, m.Code)
	if err != nil {
		return nil, s.fail(domain.KindDeposit, err)
	}

	for _, l := range lines {
		if err := cart.CheckWeight(l.WeightKg); err != nil {
			return nil, s.fail(domain.KindDeposit, err)
		}
	}
	weight, subtotal := cart.Totals(lines)
	if err := cart.CheckWeight(weight); err != nil {
		return nil, s.fail(domain.KindDeposit, err)
	}
	rounded := subtotal.Round(0)
	if rounded.IsNegative() || rounded.GreaterThan(decimal.NewFromInt(math.MaxInt64-fresh.Balance)) {
		return nil, s.fail(domain.KindDeposit, domain.Invalid(domain.ErrInvalidAmount, subtotal.String()))
	}
	amount := rounded.IntPart()

	entry := s.entry(fresh, domain.KindDeposit, amount, weight, lines, operator)
	return s.commit(ctx, fresh, entry, fresh.Balance+amount)
}

// PostWithdrawal debits amount from the member. The balance guard is
// re-applied against the freshly read balance.
func (s *PostingService) PostWithdrawal(ctx context.Context, m *domain.Member, amount int64, operator string) (*domain.LedgerEntry, error) {
	if err := guard.CheckAmount(m, amount); err != nil {
		return nil, s.fail(domain.KindWithdrawal, err)
	}

	fresh, err := s.reload(ctx, m.Code)
	if err != nil {
		return nil, s.fail(domain.KindWithdrawal, err)
	}
	if err := guard.CheckAmount(fresh, amount); err != nil {
		return nil, s.fail(domain.KindWithdrawal, err)
	}

	entry := s.entry(fresh, domain.KindWithdrawal, -amount, decimal.Zero, []domain.LineItem{}, operator)
	return s.commit(ctx, fresh, entry, fresh.Balance-amount)
}

func (s *PostingService) reload(ctx context.Context, code string) (*domain.Member, error) {
	fresh, err := s.resolver.ResolveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, domain.ErrMemberNotFound
	}
	return fresh, nil
}

func (s *PostingService) entry(m *domain.Member, kind domain.EntryKind, amount int64, weight decimal.Decimal, lines []domain.LineItem, operator string) domain.LedgerEntry {
	if operator == "" {
		operator = domain.UnknownOperator
	}
	now := s.now()
	return domain.LedgerEntry{
		MemberCode:    m.Code,
		MemberName:    m.Name,
		Timestamp:     now,
		CreatedAt:     now,
		Kind:          kind,
		TotalAmount:   amount,
		TotalWeightKg: weight,
		Items:         lines,
		Operator:      operator,
	}
}

func (s *PostingService) commit(ctx context.Context, m *domain.Member, entry domain.LedgerEntry, newBalance int64) (*domain.LedgerEntry, error) {
	id, err := s.store.Commit(ctx, store.Batch{
		Entry: entry,
		Balance: store.BalanceUpdate{
			MemberID: m.ID,
			Expected: m.Balance,
			New:      newBalance,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, ErrConflict)
		case errors.Is(err, store.ErrNotFound):
			err = domain.ErrMemberNotFound
		default:
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return nil, s.fail(entry.Kind, err)
	}

	s.cache.Invalidate()
	entry.ID = id
	postingsTotal.WithLabelValues(string(entry.Kind), "ok").Inc()
	postedAmount.WithLabelValues(string(entry.Kind)).Add(float64(abs(entry.TotalAmount)))
	s.logger.Info("transaction posted",
		"kind", entry.Kind,
		"entry_id", id,
		"member", m.Code,
		"amount", entry.TotalAmount,
		"balance", newBalance,
		"operator", entry.Operator,
	)
	return &entry, nil
}

func (s *PostingService) fail(kind domain.EntryKind, err error) error {
	result := "error"
	if domain.IsValidation(err) {
		result = "rejected"
	} else {
		s.logger.Error("posting failed", "kind", kind, "error", err)
	}
	postingsTotal.WithLabelValues(string(kind), result).Inc()
	return err
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
