package orderbook

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"swapbook/core/types"
)

const (
	EventTypeOrderPlaced   = "orderbook.placed"
	EventTypeOrderResolved = "orderbook.resolved"
	EventTypeOrderFilled   = "orderbook.filled"
	EventTypeOrderClosed   = "orderbook.closed"
)

// NewPlacedEvent returns the canonical event payload for a newly placed order.
func NewPlacedEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderPlaced, o)
}

// NewFilledEvent returns the payload emitted when an order reaches its fill
// target.
func NewFilledEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderFilled, o)
}

// NewClosedEvent returns the payload emitted when an open order is closed and
// its escrow refunded.
func NewClosedEvent(o *Order, refunded *big.Int) *types.Event {
	evt := newOrderEvent(EventTypeOrderClosed, o)
	if refunded != nil {
		evt.Attributes["refunded"] = refunded.String()
	}
	return evt
}

// NewResolvedEvent returns the payload emitted for each settlement between a
// matched buy/sell pair.
func NewResolvedEvent(buy, sell *Order, fillAmount, amountToSeller uint64) *types.Event {
	attrs := map[string]string{
		"fillAmount":     strconv.FormatUint(fillAmount, 10),
		"amountToSeller": strconv.FormatUint(amountToSeller, 10),
	}
	if buy != nil {
		attrs["buyOrder"] = hex.EncodeToString(buy.Address[:])
		attrs["buyStatus"] = buy.Status.String()
		attrs["buyFilled"] = strconv.FormatUint(buy.FilledAmount, 10)
	}
	if sell != nil {
		attrs["sellOrder"] = hex.EncodeToString(sell.Address[:])
		attrs["sellStatus"] = sell.Status.String()
		attrs["sellFilled"] = strconv.FormatUint(sell.FilledAmount, 10)
	}
	return &types.Event{Type: EventTypeOrderResolved, Attributes: attrs}
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["order"] = hex.EncodeToString(o.Address[:])
	attrs["creator"] = hex.EncodeToString(o.Creator[:])
	attrs["listedAsset"] = o.ListedAsset
	attrs["acceptingAsset"] = o.AcceptingAsset
	attrs["listedAmount"] = strconv.FormatUint(o.ListedAmount, 10)
	attrs["listedPrice"] = strconv.FormatUint(o.ListedPrice, 10)
	attrs["filledAmount"] = strconv.FormatUint(o.FilledAmount, 10)
	attrs["kind"] = o.Kind.String()
	attrs["status"] = o.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
