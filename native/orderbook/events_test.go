package orderbook

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func TestNewPlacedEventAttributes(t *testing.T) {
	order := &Order{
		Address:        newTestAddress(0x01),
		Creator:        newTestAddress(0x02),
		ListedAsset:    "AAA",
		ListedAmount:   400,
		ListedPrice:    2,
		AcceptingAsset: "BBB",
		Kind:           OrderKindSell,
		Status:         OrderOpen,
	}
	evt := NewPlacedEvent(order)
	if evt.Type != EventTypeOrderPlaced {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["order"] != hex.EncodeToString(order.Address[:]) {
		t.Fatalf("order attribute mismatch: %s", evt.Attributes["order"])
	}
	if evt.Attributes["listedAmount"] != "400" || evt.Attributes["kind"] != "sell" {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}
}

func TestNewClosedEventIncludesRefund(t *testing.T) {
	order := &Order{Address: newTestAddress(0x03), ListedAsset: "AAA"}
	evt := NewClosedEvent(order, big.NewInt(250))
	if evt.Attributes["refunded"] != "250" {
		t.Fatalf("expected refunded attribute, got %v", evt.Attributes)
	}
	evt = NewClosedEvent(order, nil)
	if _, ok := evt.Attributes["refunded"]; ok {
		t.Fatalf("nil refund must omit the attribute")
	}
}

func TestNewResolvedEventAttributes(t *testing.T) {
	buy := &Order{Address: newTestAddress(0x04), Status: OrderPartiallyFilled, FilledAmount: 40}
	sell := &Order{Address: newTestAddress(0x05), Status: OrderFilled, FilledAmount: 100}
	evt := NewResolvedEvent(buy, sell, 40, 80)
	if evt.Type != EventTypeOrderResolved {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["fillAmount"] != "40" || evt.Attributes["amountToSeller"] != "80" {
		t.Fatalf("unexpected amounts %v", evt.Attributes)
	}
	if evt.Attributes["buyStatus"] != "partially_filled" || evt.Attributes["sellStatus"] != "filled" {
		t.Fatalf("unexpected statuses %v", evt.Attributes)
	}
}

func TestNewOrderEventNilOrder(t *testing.T) {
	evt := NewFilledEvent(nil)
	if evt.Type != EventTypeOrderFilled || len(evt.Attributes) != 0 {
		t.Fatalf("nil order must yield an empty payload, got %v", evt)
	}
}
