package inventory

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Limits bounds caller input. Zero fields fall back to DefaultLimits.
type Limits struct {
	NameMax     int
	UsernameMax int
	PasswordMax int
	PartnerMax  int
	DetailMax   int
	QuantityMin int
	QuantityMax int
	PageDefault int
	PageMax     int
	RecordsMax  int
}

func DefaultLimits() Limits {
	return Limits{
		NameMax:     100,
		UsernameMax: 50,
		PasswordMax: 100,
		PartnerMax:  100,
		DetailMax:   500,
		QuantityMin: 1,
		QuantityMax: 999999,
		PageDefault: 20,
		PageMax:     100,
		RecordsMax:  200,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&l.NameMax, d.NameMax)
	fill(&l.UsernameMax, d.UsernameMax)
	fill(&l.PasswordMax, d.PasswordMax)
	fill(&l.PartnerMax, d.PartnerMax)
	fill(&l.DetailMax, d.DetailMax)
	fill(&l.QuantityMin, d.QuantityMin)
	fill(&l.QuantityMax, d.QuantityMax)
	fill(&l.PageDefault, d.PageDefault)
	fill(&l.PageMax, d.PageMax)
	fill(&l.RecordsMax, d.RecordsMax)
	return l
}

// Name trims s and checks it is non-empty and within max runes.
func (l Limits) Name(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(field, "must not be empty")
	}
	if utf8.RuneCountInString(s) > max {
		return "", invalid(field, "must be at most %d characters", max)
	}
	return s, nil
}

// Optional trims s and checks its length. Empty is allowed.
func (l Limits) Optional(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", invalid(field, "must be at most %d characters", max)
	}
	return s, nil
}

func (l Limits) Quantity(q int) error {
	if q < l.QuantityMin || q > l.QuantityMax {
		return invalid("quantity", "must be between %d and %d", l.QuantityMin, l.QuantityMax)
	}
	return nil
}

// Page clamps a caller page to the configured window.
func (l Limits) Page(p Page, max int) Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = l.PageDefault
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

func price(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid(field, "must not be negative")
	}
	return nil
}

// BOM checks every per-unit quantity lies within the quantity bounds.
func (l Limits) BOM(bom BOM) error {
	for _, id := range bom.MaterialIDs() {
		if q := bom[id]; q < l.QuantityMin || q > l.QuantityMax {
			return invalid("bom", "quantity for material %d must be between %d and %d", id, l.QuantityMin, l.QuantityMax)
		}
	}
	return nil
}
