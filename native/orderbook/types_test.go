package orderbook

import (
	"errors"
	"testing"
)

func TestNormalizeAsset(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aaa", "AAA", false},
		{"  UsDc  ", "USDC", false},
		{"ASSET1234567890A", "ASSET1234567890A", false},
		{"", "", true},
		{"   ", "", true},
		{"TOOLONGSYMBOL12345", "", true},
		{"A-B", "", true},
		{"a b", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeAsset(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NormalizeAsset(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeAsset(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeAsset(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseOrderKind(t *testing.T) {
	if kind, err := ParseOrderKind(" Buy "); err != nil || kind != OrderKindBuy {
		t.Fatalf("expected buy, got %v %v", kind, err)
	}
	if kind, err := ParseOrderKind("SELL"); err != nil || kind != OrderKindSell {
		t.Fatalf("expected sell, got %v %v", kind, err)
	}
	if _, err := ParseOrderKind("limit"); !errors.Is(err, ErrInvalidOrderKind) {
		t.Fatalf("expected ErrInvalidOrderKind, got %v", err)
	}
}

func TestSanitizeOrder(t *testing.T) {
	valid := &Order{
		Address:      newTestAddress(0x01),
		Creator:      newTestAddress(0x02),
		ListedAsset:  "aaa",
		ListedAmount: 100,
		ListedPrice:  2,

		AcceptingAsset: "bbb",
		Kind:           OrderKindSell,
		Status:         OrderOpen,
	}
	sanitized, err := SanitizeOrder(valid)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.ListedAsset != "AAA" || sanitized.AcceptingAsset != "BBB" {
		t.Fatalf("symbols not canonicalised: %+v", sanitized)
	}
	if valid.ListedAsset != "aaa" {
		t.Fatalf("input order must not be mutated")
	}

	cases := []struct {
		name   string
		mutate func(*Order)
	}{
		{"zero amount", func(o *Order) { o.ListedAmount = 0 }},
		{"zero price", func(o *Order) { o.ListedPrice = 0 }},
		{"bad listed asset", func(o *Order) { o.ListedAsset = "" }},
		{"bad accepting asset", func(o *Order) { o.AcceptingAsset = "!" }},
		{"bad kind", func(o *Order) { o.Kind = OrderKind(7) }},
		{"bad status", func(o *Order) { o.Status = OrderStatus(7) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := valid.Clone()
			tc.mutate(order)
			if _, err := SanitizeOrder(order); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := SanitizeOrder(nil); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters for nil order, got %v", err)
	}
}

func TestOrderClone(t *testing.T) {
	order := &Order{ListedAsset: "AAA", FilledAmount: 5}
	clone := order.Clone()
	clone.FilledAmount = 10
	if order.FilledAmount != 5 {
		t.Fatalf("clone must not alias the original")
	}
	if (*Order)(nil).Clone() != nil {
		t.Fatalf("nil clone must stay nil")
	}
}
