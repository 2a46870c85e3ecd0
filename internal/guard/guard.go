// Package guard holds the withdrawal preconditions. It performs no I/O.
package guard

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

// CheckWithdrawal validates raw against the member's known balance and returns
// the parsed amount for posting.
func CheckWithdrawal(m *domain.Member, raw string) (int64, error) {
	if m == nil {
		return 0, domain.Invalid(domain.ErrNoMemberSelected, "")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.Invalid(domain.ErrInvalidAmount, raw)
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return 0, domain.Invalid(domain.ErrInvalidAmount, raw)
	}
	if amount.GreaterThan(decimal.NewFromInt(m.Balance)) {
		return 0, domain.Invalid(domain.ErrInsufficientBalance, amount.String())
	}
	return amount.IntPart(), nil
}

// CheckAmount applies the same rules to an already-parsed amount.
func CheckAmount(m *domain.Member, amount int64) error {
	switch {
	case m == nil:
		return domain.Invalid(domain.ErrNoMemberSelected, "")
	case amount <= 0:
		return domain.Invalid(domain.ErrInvalidAmount, decimal.NewFromInt(amount).String())
	case amount > m.Balance:
		return domain.Invalid(domain.ErrInsufficientBalance, decimal.NewFromInt(amount).String())
	}
	return nil
}
