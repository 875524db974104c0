package orderbook

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrDerivationExhausted signals that no bump value yields a usable address.
// Callers must treat this as a hard failure, never retry.
var ErrDerivationExhausted = errors.New("orderbook: derivation space exhausted")

var (
	orderSeed = []byte("swapbook/order")
	vaultSeed = []byte("swapbook/vault")
)

// DeriveOrderAddress deterministically derives the address that an order for
// (creator, listedAsset, nonce) must occupy, together with the bump byte that
// produced it. The bump is searched downward from 255 and the first value
// hashing to a non-zero address wins; storing it with the record lets later
// operations re-derive the address in a single hash.
func DeriveOrderAddress(creator [20]byte, listedAsset string, nonce uint8) ([20]byte, uint8, error) {
	normalized, err := NormalizeAsset(listedAsset)
	if err != nil {
		return [20]byte{}, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr := orderAddressWithBump(creator, normalized, nonce, uint8(bump))
		if addr != ([20]byte{}) {
			return addr, uint8(bump), nil
		}
	}
	return [20]byte{}, 0, ErrDerivationExhausted
}

// VerifyOrderAddress re-derives the address from the stored bump and reports
// whether it matches. Every operation touching an order authenticates the
// record this way before trusting its vault.
func VerifyOrderAddress(creator [20]byte, listedAsset string, nonce, bump uint8, addr [20]byte) bool {
	normalized, err := NormalizeAsset(listedAsset)
	if err != nil {
		return false
	}
	return orderAddressWithBump(creator, normalized, nonce, bump) == addr
}

// DeriveVaultAddress derives the custodial vault address for an order. The
// vault needs no bump of its own: it is subordinate to the already-unique
// order address.
func DeriveVaultAddress(order [20]byte, listedAsset string) [20]byte {
	normalized, err := NormalizeAsset(listedAsset)
	if err != nil {
		normalized = listedAsset
	}
	hash := ethcrypto.Keccak256(vaultSeed, order[:], []byte(normalized))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

func orderAddressWithBump(creator [20]byte, asset string, nonce, bump uint8) [20]byte {
	hash := ethcrypto.Keccak256(orderSeed, creator[:], []byte(asset), []byte{nonce}, []byte{bump})
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}
