package orderbook

import "errors"

var (
	// Parameter validation.
	ErrInvalidParameters     = errors.New("orderbook: invalid parameters")
	ErrInvalidListedAsset    = errors.New("orderbook: invalid listed asset")
	ErrInvalidAcceptingAsset = errors.New("orderbook: invalid accepting asset")
	ErrInvalidOrderKind      = errors.New("orderbook: invalid order kind")
	ErrInvalidOrderAccount   = errors.New("orderbook: order account does not match derivation")
	ErrAssetPairMismatch     = errors.New("orderbook: matched orders do not form an asset pair")

	// Authorization.
	ErrNotCreator            = errors.New("orderbook: caller is not the order creator")
	ErrUnauthorizedAuthority = errors.New("orderbook: caller is not the settlement authority")

	// State.
	ErrDuplicateOrder = errors.New("orderbook: derived order address already occupied")
	ErrOrderNotFound  = errors.New("orderbook: order not found")
	ErrOrderNotOpen   = errors.New("orderbook: order is not open")
	ErrStaleOrder     = errors.New("orderbook: order already filled")

	// Resources.
	ErrInsufficientFunds = errors.New("orderbook: insufficient spendable balance")
	ErrVaultUnderfunded  = errors.New("orderbook: vault balance below required debit")

	// Arithmetic.
	ErrAmountOverflow = errors.New("orderbook: amount arithmetic overflow")
)
