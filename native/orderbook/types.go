package orderbook

import (
	"fmt"
	"strings"
)

// OrderKind distinguishes the two sides of a standing order.
type OrderKind uint8

const (
	OrderKindBuy OrderKind = iota
	OrderKindSell
)

// Valid reports whether the kind value is within the supported range.
func (k OrderKind) Valid() bool {
	return k == OrderKindBuy || k == OrderKindSell
}

func (k OrderKind) String() string {
	switch k {
	case OrderKindBuy:
		return "buy"
	case OrderKindSell:
		return "sell"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseOrderKind maps the canonical lowercase names back to an OrderKind.
func ParseOrderKind(s string) (OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return OrderKindBuy, nil
	case "sell":
		return OrderKindSell, nil
	default:
		return 0, ErrInvalidOrderKind
	}
}

// OrderStatus tracks fill progress. Status only ever advances:
// Open -> PartiallyFilled -> Filled. A cancelled order has no status because
// closing destroys the record.
type OrderStatus uint8

const (
	OrderOpen OrderStatus = iota
	OrderPartiallyFilled
	OrderFilled
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderOpen, OrderPartiallyFilled, OrderFilled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderPartiallyFilled:
		return "partially_filled"
	case OrderFilled:
		return "filled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Order is the persisted record of one standing offer to trade the listed
// asset for the accepting asset at a fixed integer price. The record lives at
// its deterministically derived address; the stored bump lets every later
// operation re-derive and authenticate that address without a lookup.
type Order struct {
	Address        [20]byte
	Creator        [20]byte
	ListedAsset    string
	ListedAmount   uint64
	ListedPrice    uint64
	AcceptingAsset string
	FilledAmount   uint64
	Kind           OrderKind
	Status         OrderStatus
	Nonce          uint8
	Bump           uint8
	CreatedAt      int64
}

// Clone returns a copy of the order so callers can mutate it freely.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// NormalizeAsset canonicalises an asset symbol: trimmed, uppercase, 1 to 16
// characters from [A-Z0-9].
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if len(trimmed) == 0 || len(trimmed) > 16 {
		return "", fmt.Errorf("%w: asset symbol %q", ErrInvalidParameters, symbol)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: asset symbol %q", ErrInvalidParameters, symbol)
		}
	}
	return trimmed, nil
}

// SanitizeOrder validates and normalises the supplied order, returning a clone
// with canonical asset casing. The original value is not mutated.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil order", ErrInvalidParameters)
	}
	clone := o.Clone()
	listed, err := NormalizeAsset(clone.ListedAsset)
	if err != nil {
		return nil, err
	}
	accepting, err := NormalizeAsset(clone.AcceptingAsset)
	if err != nil {
		return nil, err
	}
	clone.ListedAsset = listed
	clone.AcceptingAsset = accepting
	if clone.ListedAmount == 0 || clone.ListedPrice == 0 {
		return nil, fmt.Errorf("%w: amount and price must be positive", ErrInvalidParameters)
	}
	if !clone.Kind.Valid() {
		return nil, ErrInvalidOrderKind
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidParameters, clone.Status)
	}
	return clone, nil
}
