package orderbook

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	nativecommon "swapbook/native/common"
)

// ResolveReceipt reports the outcome of one settlement call: the updated
// orders and the converted quantity paid to the seller.
type ResolveReceipt struct {
	BuyOrder       *Order
	SellOrder      *Order
	FillAmount     uint64
	AmountToSeller uint64
}

// Resolve settles a matched (buy, sell) pair for fillAmount units of the sell
// side's listed asset. The caller must be the configured settlement authority;
// the engine validates the pairing but trusts the authority's economic choice
// of match. All transfers and both fill updates apply within the caller's
// atomic transaction scope: any error discards every effect.
func (e *Engine) Resolve(caller, buyAddr, sellAddr [20]byte, fillAmount uint64) (*ResolveReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if caller != e.authority || e.authority == ([20]byte{}) {
		return nil, ErrUnauthorizedAuthority
	}
	if fillAmount == 0 {
		return nil, fmt.Errorf("%w: fill amount must be positive", ErrInvalidParameters)
	}
	buyOrder, err := e.loadOrder(buyAddr)
	if err != nil {
		return nil, err
	}
	sellOrder, err := e.loadOrder(sellAddr)
	if err != nil {
		return nil, err
	}
	if buyOrder.Kind != OrderKindBuy || sellOrder.Kind != OrderKindSell {
		return nil, ErrInvalidOrderKind
	}
	if buyOrder.AcceptingAsset != sellOrder.ListedAsset || buyOrder.ListedAsset != sellOrder.AcceptingAsset {
		return nil, ErrAssetPairMismatch
	}
	if buyOrder.Status == OrderFilled || sellOrder.Status == OrderFilled {
		return nil, ErrStaleOrder
	}
	sellerAsset, ok := e.state.AssetGet(sellOrder.ListedAsset)
	if !ok {
		return nil, ErrInvalidListedAsset
	}
	if _, ok := e.state.AssetGet(buyOrder.ListedAsset); !ok {
		return nil, ErrInvalidAcceptingAsset
	}

	// Quantity of the buy side's listed (payment) asset owed to the seller at
	// the sell order's stated price. Truncating division: the payer never
	// over-pays; the residual fraction is lost, not credited.
	amountToSeller, err := convertToAccepting(fillAmount, sellOrder.ListedPrice, sellerAsset.Decimals)
	if err != nil {
		return nil, err
	}

	buyVault := DeriveVaultAddress(buyOrder.Address, buyOrder.ListedAsset)
	sellVault := DeriveVaultAddress(sellOrder.Address, sellOrder.ListedAsset)
	if err := e.debitVault(buyVault, sellOrder.Creator, buyOrder.ListedAsset, amountToSeller); err != nil {
		return nil, err
	}
	if err := e.debitVault(sellVault, buyOrder.Creator, sellOrder.ListedAsset, fillAmount); err != nil {
		return nil, err
	}

	sellOrder.FilledAmount, err = checkedAdd(sellOrder.FilledAmount, fillAmount)
	if err != nil {
		return nil, err
	}
	if sellOrder.FilledAmount >= sellOrder.ListedAmount {
		sellOrder.Status = OrderFilled
	} else {
		sellOrder.Status = OrderPartiallyFilled
	}

	buyOrder.FilledAmount, err = checkedAdd(buyOrder.FilledAmount, fillAmount)
	if err != nil {
		return nil, err
	}
	// The buy order's capacity is expressed in the seller's listed asset: the
	// maximum quantity its escrowed payment can absorb at the sell price.
	buyTarget, err := buyFillTarget(buyOrder.ListedAmount, sellOrder.ListedPrice, sellerAsset.Decimals)
	if err != nil {
		return nil, err
	}
	if buyOrder.FilledAmount >= buyTarget {
		buyOrder.Status = OrderFilled
	} else {
		buyOrder.Status = OrderPartiallyFilled
	}

	if err := e.state.OrderPut(sellOrder); err != nil {
		return nil, err
	}
	if err := e.state.OrderPut(buyOrder); err != nil {
		return nil, err
	}

	e.emit(NewResolvedEvent(buyOrder, sellOrder, fillAmount, amountToSeller))
	if sellOrder.Status == OrderFilled {
		e.emit(NewFilledEvent(sellOrder))
	}
	if buyOrder.Status == OrderFilled {
		e.emit(NewFilledEvent(buyOrder))
	}
	return &ResolveReceipt{
		BuyOrder:       buyOrder.Clone(),
		SellOrder:      sellOrder.Clone(),
		FillAmount:     fillAmount,
		AmountToSeller: amountToSeller,
	}, nil
}

// debitVault moves amount out of a vault after confirming the balance covers
// it. Underfunding cannot happen while the conservation invariants hold, but
// the check keeps a corrupted record from minting value.
func (e *Engine) debitVault(vault, to [20]byte, symbol string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	amt := new(big.Int).SetUint64(amount)
	balance, err := e.accountBalance(vault, symbol)
	if err != nil {
		return err
	}
	if balance.Cmp(amt) < 0 {
		return ErrVaultUnderfunded
	}
	if err := e.transferAsset(vault, to, symbol, amt); err != nil {
		if errors.Is(err, errInsufficientBalance) {
			return ErrVaultUnderfunded
		}
		return err
	}
	return nil
}

// convertToAccepting converts fillAmount units of the seller's listed asset
// into the accepting-asset quantity owed at the given price, truncating
// toward zero.
func convertToAccepting(fillAmount, price uint64, decimals uint8) (uint64, error) {
	out := new(big.Int).Mul(new(big.Int).SetUint64(fillAmount), new(big.Int).SetUint64(price))
	out.Quo(out, pow10(decimals))
	if !out.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return out.Uint64(), nil
}

// buyFillTarget computes the maximum quantity of the seller's listed asset a
// buy order can absorb at the sell price, truncating toward zero.
func buyFillTarget(listedAmount, price uint64, decimals uint8) (uint64, error) {
	target := new(big.Int).Mul(new(big.Int).SetUint64(listedAmount), pow10(decimals))
	target.Quo(target, new(big.Int).SetUint64(price))
	if !target.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return target.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
