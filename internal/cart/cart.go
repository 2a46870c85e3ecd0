// Package cart accumulates the waste lines of a single in-progress deposit.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

// Weights are stored as NUMERIC(12,3): at most three decimals and below 10^9 kg.
const weightScale = 3

var maxWeightKg = decimal.RequireFromString("999999999.999")

// CheckWeight rejects weights that are not positive or that the ledger cannot
// store exactly.
func CheckWeight(weight decimal.Decimal) error {
	switch {
	case !weight.IsPositive():
		return domain.Invalid(domain.ErrInvalidWeight, weight.String())
	case !weight.Equal(weight.Truncate(weightScale)):
		return domain.Invalid(domain.ErrInvalidWeight, weight.String()+" has more than 3 decimals")
	case weight.GreaterThan(maxWeightKg):
		return domain.Invalid(domain.ErrInvalidWeight, weight.String()+" exceeds "+maxWeightKg.String())
	}
	return nil
}

// Cart is owned by one cashier session and is not safe for concurrent use.
// Lines are keyed by waste type id; a repeated type merges into its first line.
type Cart struct {
	lines []domain.LineItem
}

func New() *Cart {
	return &Cart{}
}

// Add records weight kilograms of wt at its current price.
func (c *Cart) Add(wt domain.WasteType, weight decimal.Decimal) error {
	if err := CheckWeight(weight); err != nil {
		return err
	}
	if wt.PricePerKg < 0 {
		return domain.Invalid(domain.ErrInvalidPrice, wt.Name)
	}

	subtotal := weight.Mul(decimal.NewFromInt(wt.PricePerKg))
	for i := range c.lines {
		if c.lines[i].WasteTypeID == wt.ID {
			merged := c.lines[i].WeightKg.Add(weight)
			if err := CheckWeight(merged); err != nil {
				return err
			}
			c.lines[i].WeightKg = merged
			c.lines[i].Subtotal = c.lines[i].Subtotal.Add(subtotal)
			return nil
		}
	}

	c.lines = append(c.lines, domain.LineItem{
		WasteTypeID:   wt.ID,
		WasteTypeName: wt.Name,
		WeightKg:      weight,
		PricePerKg:    wt.PricePerKg,
		Subtotal:      subtotal,
	})
	return nil
}

// Remove drops the line for wasteTypeID, if any.
func (c *Cart) Remove(wasteTypeID string) {
	c.lines = slices.DeleteFunc(c.lines, func(l domain.LineItem) bool {
		return l.WasteTypeID == wasteTypeID
	})
}

// Totals returns the summed weight and summed subtotal.
func (c *Cart) Totals() (weight, amount decimal.Decimal) {
	return Totals(c.lines)
}

// Lines returns a copy in insertion order.
func (c *Cart) Lines() []domain.LineItem {
	return slices.Clone(c.lines)
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Reset() {
	c.lines = nil
}

// Totals sums weight and subtotal over lines.
func Totals(lines []domain.LineItem) (weight, amount decimal.Decimal) {
	weight, amount = decimal.Zero, decimal.Zero
	for _, l := range lines {
		weight = weight.Add(l.WeightKg)
		amount = amount.Add(l.Subtotal)
	}
	return weight, amount
}
