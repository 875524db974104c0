package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"swapbook/core/types"
	"swapbook/native/orderbook"
	"swapbook/storage"
)

// Manager exposes the ledger state consumed by the orderbook engine: accounts,
// the asset registry and the order store. Writes are buffered in an overlay
// until Commit flushes them to the backing database, so a Manager doubles as
// the atomic transaction scope for one request: drop it without committing
// and no mutation is observable.
//
// A Manager is not safe for concurrent use; the node serializes requests.
type Manager struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewManager creates a manager with an empty overlay on top of the database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Commit flushes all buffered writes and deletions to the backing database as
// one atomic batch. A storage error applies nothing: the overlay keeps its
// contents and the committed state is exactly what it was before the call.
func (m *Manager) Commit() error {
	batch := storage.NewBatch()
	for key := range m.deletes {
		batch.Delete([]byte(key))
	}
	for key, value := range m.writes {
		batch.Put([]byte(key), value)
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.writes = make(map[string][]byte)
	m.deletes = make(map[string]struct{})
	return nil
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if _, ok := m.deletes[string(key)]; ok {
		return nil, storage.ErrKeyNotFound
	}
	if value, ok := m.writes[string(key)]; ok {
		return value, nil
	}
	return m.db.Get(key)
}

func (m *Manager) put(key, value []byte) {
	delete(m.deletes, string(key))
	m.writes[string(key)] = value
}

func (m *Manager) remove(key []byte) {
	delete(m.writes, string(key))
	m.deletes[string(key)] = struct{}{}
}

// --- Accounts ---

type balanceEntry struct {
	Symbol string
	Amount *big.Int
}

type storedAccount struct {
	Nonce    uint64
	Balances []balanceEntry
}

// GetAccount loads the account at the given address. Unknown addresses read
// as empty accounts.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, err := m.get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return types.NewAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account := types.NewAccount()
	account.Nonce = stored.Nonce
	for _, entry := range stored.Balances {
		account.SetBalance(entry.Symbol, entry.Amount)
	}
	return account, nil
}

// PutAccount persists the account. Accounts left with no nonce and no
// balances are removed from storage entirely, which is how a drained vault
// disappears with its order.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil || (account.Nonce == 0 && len(account.Balances) == 0) {
		m.remove(accountKey(addr))
		return nil
	}
	stored := &storedAccount{Nonce: account.Nonce}
	symbols := make([]string, 0, len(account.Balances))
	for symbol := range account.Balances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		stored.Balances = append(stored.Balances, balanceEntry{Symbol: symbol, Amount: account.Balance(symbol)})
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	m.put(accountKey(addr), encoded)
	return nil
}

// --- Asset registry ---

type storedAsset struct {
	Symbol   string
	Decimals uint8
}

// RegisterAsset records an asset and its decimal scale. Registration is
// idempotent as long as the decimals match; changing the scale of a live
// asset is rejected.
func (m *Manager) RegisterAsset(symbol string, decimals uint8) error {
	normalized, err := orderbook.NormalizeAsset(symbol)
	if err != nil {
		return err
	}
	if existing, ok := m.AssetGet(normalized); ok {
		if existing.Decimals != decimals {
			return fmt.Errorf("state: asset %s already registered with decimals %d", normalized, existing.Decimals)
		}
		return nil
	}
	encoded, err := rlp.EncodeToBytes(&storedAsset{Symbol: normalized, Decimals: decimals})
	if err != nil {
		return err
	}
	m.put(assetKey(normalized), encoded)
	index, err := m.assetIndex()
	if err != nil {
		return err
	}
	index = append(index, normalized)
	sort.Strings(index)
	encodedIndex, err := rlp.EncodeToBytes(index)
	if err != nil {
		return err
	}
	m.put(assetIndexKey, encodedIndex)
	return nil
}

// AssetGet returns the registry entry for the canonical symbol.
func (m *Manager) AssetGet(symbol string) (*types.Asset, bool) {
	data, err := m.get(assetKey(symbol))
	if err != nil {
		return nil, false
	}
	stored := new(storedAsset)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &types.Asset{Symbol: stored.Symbol, Decimals: stored.Decimals}, true
}

// Assets returns every registered asset in symbol order.
func (m *Manager) Assets() ([]types.Asset, error) {
	index, err := m.assetIndex()
	if err != nil {
		return nil, err
	}
	out := make([]types.Asset, 0, len(index))
	for _, symbol := range index {
		asset, ok := m.AssetGet(symbol)
		if !ok {
			return nil, fmt.Errorf("state: indexed asset %s missing", symbol)
		}
		out = append(out, *asset)
	}
	return out, nil
}

func (m *Manager) assetIndex() ([]string, error) {
	data, err := m.get(assetIndexKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var index []string
	if err := rlp.DecodeBytes(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

// --- Orders ---

type storedOrder struct {
	Address        [20]byte
	Creator        [20]byte
	ListedAsset    string
	ListedAmount   uint64
	ListedPrice    uint64
	AcceptingAsset string
	FilledAmount   uint64
	Kind           uint8
	Status         uint8
	Nonce          uint8
	Bump           uint8
	CreatedAt      uint64
}

// OrderPut persists the order at its derived address.
func (m *Manager) OrderPut(order *orderbook.Order) error {
	sanitized, err := orderbook.SanitizeOrder(order)
	if err != nil {
		return err
	}
	stored := &storedOrder{
		Address:        sanitized.Address,
		Creator:        sanitized.Creator,
		ListedAsset:    sanitized.ListedAsset,
		ListedAmount:   sanitized.ListedAmount,
		ListedPrice:    sanitized.ListedPrice,
		AcceptingAsset: sanitized.AcceptingAsset,
		FilledAmount:   sanitized.FilledAmount,
		Kind:           uint8(sanitized.Kind),
		Status:         uint8(sanitized.Status),
		Nonce:          sanitized.Nonce,
		Bump:           sanitized.Bump,
		CreatedAt:      uint64(sanitized.CreatedAt),
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state: encode order: %w", err)
	}
	m.put(orderKey(sanitized.Address), encoded)
	return nil
}

// OrderGet loads the order stored at the derived address.
func (m *Manager) OrderGet(addr [20]byte) (*orderbook.Order, bool) {
	data, err := m.get(orderKey(addr))
	if err != nil {
		return nil, false
	}
	stored := new(storedOrder)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &orderbook.Order{
		Address:        stored.Address,
		Creator:        stored.Creator,
		ListedAsset:    stored.ListedAsset,
		ListedAmount:   stored.ListedAmount,
		ListedPrice:    stored.ListedPrice,
		AcceptingAsset: stored.AcceptingAsset,
		FilledAmount:   stored.FilledAmount,
		Kind:           orderbook.OrderKind(stored.Kind),
		Status:         orderbook.OrderStatus(stored.Status),
		Nonce:          stored.Nonce,
		Bump:           stored.Bump,
		CreatedAt:      int64(stored.CreatedAt),
	}, true
}

// OrderRemove deletes the order record; the caller is responsible for
// draining its vault first.
func (m *Manager) OrderRemove(addr [20]byte) error {
	m.remove(orderKey(addr))
	return nil
}
