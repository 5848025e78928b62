package domain

import (
	"fmt"
	"strconv"
)

type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeProducts   Scope = "products"
	ScopeCategories Scope = "categories"
)

// DiscountRule describes how a promotion applies. Magnitude is a percentage (0-100)
// for percentage rules and an amount in minor units for fixed rules.
type DiscountRule struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Kind        DiscountKind `json:"kind"`
	Scope       Scope        `json:"scope"`
	TargetIDs   []string     `json:"target_ids,omitempty"`
	Magnitude   float64      `json:"magnitude"`
	IsAutomatic bool         `json:"is_automatic"`
}

func (r DiscountRule) Validate() error {
	switch r.Kind {
	case KindPercentage:
		if r.Magnitude < 0 || r.Magnitude > 100 {
			return fmt.Errorf("rule %s: percentage %.2f outside 0-100", r.ID, r.Magnitude)
		}
	case KindFixed:
		if r.Magnitude < 0 {
			return fmt.Errorf("rule %s: negative fixed amount", r.ID)
		}
	default:
		return fmt.Errorf("rule %s: unknown kind %q", r.ID, r.Kind)
	}
	switch r.Scope {
	case ScopeAll, ScopeProducts, ScopeCategories:
	default:
		return fmt.Errorf("rule %s: unknown scope %q", r.ID, r.Scope)
	}
	return nil
}

// Matches reports whether the line falls within the rule scope.
func (r DiscountRule) Matches(l CartLine) bool {
	switch r.Scope {
	case ScopeAll:
		return true
	case ScopeProducts:
		id := strconv.FormatInt(l.ProductID, 10)
		for _, t := range r.TargetIDs {
			if t == id {
				return true
			}
		}
	case ScopeCategories:
		for _, t := range r.TargetIDs {
			if l.HasCategory(t) {
				return true
			}
		}
	}
	return false
}

func (r DiscountRule) Source() DiscountSource {
	if r.IsAutomatic {
		return SourceAutomatic
	}
	return SourceManual
}
