package types

import "math/big"

// Account is the ledger-side record for one identity: externally owned
// accounts, escrow vaults and the settlement authority all share this shape.
// Balances are keyed by canonical asset symbol.
type Account struct {
	Nonce    uint64
	Balances map[string]*big.Int
}

// NewAccount returns an empty account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the account's balance for the given asset symbol. A missing
// entry reads as zero. The returned value is a copy.
func (a *Account) Balance(symbol string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[symbol]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// SetBalance stores the balance for the given asset symbol, dropping zero
// entries so empty accounts stay empty.
func (a *Account) SetBalance(symbol string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil || amount.Sign() == 0 {
		delete(a.Balances, symbol)
		return
	}
	a.Balances[symbol] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[string]*big.Int, len(a.Balances))}
	for symbol, bal := range a.Balances {
		if bal != nil {
			clone.Balances[symbol] = new(big.Int).Set(bal)
		}
	}
	return clone
}

// Asset describes one registered asset: a canonical symbol plus the decimal
// scale used for cross-asset price conversion. Decimals are per-asset
// configuration; the engine never assumes a global scale.
type Asset struct {
	Symbol   string
	Decimals uint8
}
