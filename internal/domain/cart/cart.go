// Package cart holds the shopper's cart: its lines, the reducer that owns every
// mutation, the single-writer store around it, and the stock-checked add flow.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Line is one entry in the cart. At most one line exists per ProductID.
type Line struct {
	ProductID string          `json:"_id"`
	Quantity  int             `json:"quantity"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`

	// CountInStock is the stock observed when the line was last written.
	CountInStock int `json:"countInStock"`
}

// NewLine snapshots the display fields of p into a line of the given quantity.
func NewLine(p product.Product, quantity int) Line {
	return Line{
		ProductID:    p.ID,
		Quantity:     quantity,
		Slug:         p.Slug,
		Name:         p.Name,
		Image:        p.Image,
		Price:        p.Price,
		CountInStock: p.CountInStock,
	}
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// State is an immutable snapshot of the cart.
type State struct {
	Lines []Line `json:"cartItems"`
}

// Line returns the line for productID, if any.
func (s State) Line(productID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Count returns the total number of units in the cart.
func (s State) Count() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// Total returns the sum of all line subtotals.
func (s State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (s State) clone() State {
	if s.Lines == nil {
		return State{}
	}
	lines := make([]Line, len(s.Lines))
	copy(lines, s.Lines)
	return State{Lines: lines}
}

// Action is an intent dispatched to the store.
type Action interface {
	kind() string
}

// AddItem upserts Line: an existing line with the same ProductID is replaced
// in place, otherwise the line is appended.
type AddItem struct {
	Line Line
}

// RemoveItem drops the line for ProductID.
type RemoveItem struct {
	ProductID string
}

// Clear empties the cart.
type Clear struct{}

func (AddItem) kind() string    { return "add-item" }
func (RemoveItem) kind() string { return "remove-item" }
func (Clear) kind() string      { return "clear" }

// Kind returns the wire name of the action, e.g. "add-item".
func Kind(a Action) string {
	return a.kind()
}

// Reduce applies a to s and returns the new state. It never mutates s.
// AddItem with a non-positive quantity is ignored.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AddItem:
		if a.Line.Quantity < 1 {
			return s
		}
		next := s.clone()
		for i, l := range next.Lines {
			if l.ProductID == a.Line.ProductID {
				next.Lines[i] = a.Line
				return next
			}
		}
		next.Lines = append(next.Lines, a.Line)
		return next
	case RemoveItem:
		next := State{}
		for _, l := range s.Lines {
			if l.ProductID != a.ProductID {
				next.Lines = append(next.Lines, l)
			}
		}
		return next
	case Clear:
		return State{}
	default:
		return s
	}
}
