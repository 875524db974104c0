package core

import (
	"math/big"
	"sync"

	"swapbook/core/events"
	"swapbook/core/state"
	"swapbook/core/types"
	"swapbook/native/orderbook"
	"swapbook/storage"
)

// Node executes each request as one atomic ledger transaction. Requests are
// serialized under a mutex and run against a fresh state overlay: only a
// fully successful operation commits, so concurrent close/settle races
// resolve to exactly one winner and the loser observes the committed state.
type Node struct {
	mu        sync.Mutex
	db        storage.Database
	authority [20]byte
	paused    map[string]bool
	emitter   events.Emitter
	nowFn     func() int64
}

// NewNode creates a node bound to the database with the given settlement
// authority identity.
func NewNode(db storage.Database, authority [20]byte) *Node {
	return &Node{
		db:        db,
		authority: authority,
		paused:    make(map[string]bool),
		emitter:   events.NoopEmitter{},
	}
}

// SetEmitter configures the emitter that receives events from committed
// transactions. Events from failed transactions are discarded with the rest
// of the transaction.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetPaused replaces the set of administratively halted modules.
func (n *Node) SetPaused(modules []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paused = make(map[string]bool, len(modules))
	for _, module := range modules {
		n.paused[module] = true
	}
}

// SetNowFunc overrides the engine time source, primarily for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nowFn = now
}

type pauseView struct {
	paused map[string]bool
}

func (p pauseView) IsPaused(module string) bool { return p.paused[module] }

// bufferEmitter holds events until the enclosing transaction commits.
type bufferEmitter struct {
	events []events.Event
}

func (b *bufferEmitter) Emit(evt events.Event) { b.events = append(b.events, evt) }

func (b *bufferEmitter) flush(target events.Emitter) {
	if target == nil {
		return
	}
	for _, evt := range b.events {
		target.Emit(evt)
	}
	b.events = nil
}

func (n *Node) newEngine(manager *state.Manager, buffer *bufferEmitter) *orderbook.Engine {
	engine := orderbook.NewEngine()
	engine.SetState(manager)
	engine.SetAuthority(n.authority)
	engine.SetPauses(pauseView{paused: n.paused})
	if buffer != nil {
		engine.SetEmitter(buffer)
	}
	if n.nowFn != nil {
		engine.SetNowFunc(n.nowFn)
	}
	return engine
}

// write runs fn inside a new transaction scope and commits on success.
func (n *Node) write(fn func(*orderbook.Engine, *state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	manager := state.NewManager(n.db)
	buffer := &bufferEmitter{}
	if err := fn(n.newEngine(manager, buffer), manager); err != nil {
		return err
	}
	if err := manager.Commit(); err != nil {
		return err
	}
	buffer.flush(n.emitter)
	return nil
}

// read runs fn against the current committed state without committing.
func (n *Node) read(fn func(*orderbook.Engine, *state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	manager := state.NewManager(n.db)
	return fn(n.newEngine(manager, nil), manager)
}

// RegisterAsset records an asset and its decimal scale in the registry.
func (n *Node) RegisterAsset(symbol string, decimals uint8) error {
	return n.write(func(_ *orderbook.Engine, manager *state.Manager) error {
		return manager.RegisterAsset(symbol, decimals)
	})
}

// MintBalance credits an account, used for genesis allocations and tests.
func (n *Node) MintBalance(addr [20]byte, symbol string, amount uint64) error {
	return n.write(func(_ *orderbook.Engine, manager *state.Manager) error {
		normalized, err := orderbook.NormalizeAsset(symbol)
		if err != nil {
			return err
		}
		if _, ok := manager.AssetGet(normalized); !ok {
			return orderbook.ErrInvalidListedAsset
		}
		account, err := manager.GetAccount(addr[:])
		if err != nil {
			return err
		}
		balance := account.Balance(normalized)
		balance.Add(balance, new(big.Int).SetUint64(amount))
		account.SetBalance(normalized, balance)
		return manager.PutAccount(addr[:], account)
	})
}

// PlaceOrder opens a new order and escrows its listed amount.
func (n *Node) PlaceOrder(creator [20]byte, listedAsset, acceptingAsset string, listedAmount, listedPrice uint64, kind orderbook.OrderKind, nonce uint8) (*orderbook.Order, error) {
	var placed *orderbook.Order
	err := n.write(func(engine *orderbook.Engine, _ *state.Manager) error {
		order, err := engine.Place(creator, listedAsset, acceptingAsset, listedAmount, listedPrice, kind, nonce)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// ResolveOrder settles a matched pair on behalf of the settlement authority.
func (n *Node) ResolveOrder(caller, buyOrder, sellOrder [20]byte, fillAmount uint64) (*orderbook.ResolveReceipt, error) {
	var receipt *orderbook.ResolveReceipt
	err := n.write(func(engine *orderbook.Engine, _ *state.Manager) error {
		res, err := engine.Resolve(caller, buyOrder, sellOrder, fillAmount)
		if err != nil {
			return err
		}
		receipt = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// CloseOrder refunds and destroys an open order.
func (n *Node) CloseOrder(caller, orderAddr [20]byte) error {
	return n.write(func(engine *orderbook.Engine, _ *state.Manager) error {
		return engine.Close(caller, orderAddr)
	})
}

// GetOrder returns the order stored at the derived address.
func (n *Node) GetOrder(addr [20]byte) (*orderbook.Order, error) {
	var order *orderbook.Order
	err := n.read(func(engine *orderbook.Engine, _ *state.Manager) error {
		o, err := engine.Get(addr)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetAccount returns the ledger account at the address.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	var account *types.Account
	err := n.read(func(_ *orderbook.Engine, manager *state.Manager) error {
		acc, err := manager.GetAccount(addr[:])
		if err != nil {
			return err
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Assets returns the registered asset list.
func (n *Node) Assets() ([]types.Asset, error) {
	var assets []types.Asset
	err := n.read(func(_ *orderbook.Engine, manager *state.Manager) error {
		list, err := manager.Assets()
		if err != nil {
			return err
		}
		assets = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// Authority returns the configured settlement authority identity.
func (n *Node) Authority() [20]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.authority
}
