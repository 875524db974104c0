package orderbook

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"swapbook/core/events"
	"swapbook/core/types"
	nativecommon "swapbook/native/common"
)

var (
	errNilState = errors.New("orderbook engine: state not configured")

	errInsufficientBalance = errors.New("orderbook: insufficient balance")
)

const moduleName = "orderbook"

type engineState interface {
	OrderPut(*Order) error
	OrderGet(addr [20]byte) (*Order, bool)
	OrderRemove(addr [20]byte) error
	AssetGet(symbol string) (*types.Asset, bool)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type orderbookEvent struct {
	evt *types.Event
}

func (e orderbookEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e orderbookEvent) Event() *types.Event { return e.evt }

// Engine wires the order lifecycle and settlement logic with external state
// and event emitters. Each exported operation runs as one bounded, synchronous
// computation; the caller provides the atomic transaction scope.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	authority [20]byte
	nowFn     func() int64
	pauses    nativecommon.PauseView
}

// NewEngine creates an orderbook engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the sole identity permitted to invoke Resolve.
func (e *Engine) SetAuthority(addr [20]byte) { e.authority = addr }

// SetPauses configures the module pause view consulted before every operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(orderbookEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Place creates a new order record at its derived address and escrows exactly
// listedAmount of the listed asset into the order's vault.
func (e *Engine) Place(creator [20]byte, listedAsset, acceptingAsset string, listedAmount, listedPrice uint64, kind OrderKind, nonce uint8) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if listedAmount == 0 || listedPrice == 0 {
		return nil, fmt.Errorf("%w: amount and price must be positive", ErrInvalidParameters)
	}
	if !kind.Valid() {
		return nil, ErrInvalidOrderKind
	}
	listed, err := NormalizeAsset(listedAsset)
	if err != nil {
		return nil, err
	}
	accepting, err := NormalizeAsset(acceptingAsset)
	if err != nil {
		return nil, err
	}
	if listed == accepting {
		return nil, fmt.Errorf("%w: listed and accepting asset must differ", ErrInvalidParameters)
	}
	if _, ok := e.state.AssetGet(listed); !ok {
		return nil, ErrInvalidListedAsset
	}
	if _, ok := e.state.AssetGet(accepting); !ok {
		return nil, ErrInvalidAcceptingAsset
	}
	addr, bump, err := DeriveOrderAddress(creator, listed, nonce)
	if err != nil {
		return nil, err
	}
	if _, ok := e.state.OrderGet(addr); ok {
		return nil, ErrDuplicateOrder
	}
	order := &Order{
		Address:        addr,
		Creator:        creator,
		ListedAsset:    listed,
		ListedAmount:   listedAmount,
		ListedPrice:    listedPrice,
		AcceptingAsset: accepting,
		FilledAmount:   0,
		Kind:           kind,
		Status:         OrderOpen,
		Nonce:          nonce,
		Bump:           bump,
		CreatedAt:      e.now(),
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	vault := DeriveVaultAddress(addr, listed)
	amount := new(big.Int).SetUint64(listedAmount)
	if err := e.transferAsset(creator, vault, listed, amount); err != nil {
		if errors.Is(err, errInsufficientBalance) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	e.emit(NewPlacedEvent(order))
	return order.Clone(), nil
}

// Close returns the vault's entire remaining balance to the creator and
// destroys the order record together with its vault. Only open orders can be
// closed; a partial fill pins the record until it either fully fills or the
// operator intervenes out of band.
func (e *Engine) Close(caller, orderAddr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	order, err := e.loadOrder(orderAddr)
	if err != nil {
		return err
	}
	if order.Creator != caller {
		return ErrNotCreator
	}
	if order.Status != OrderOpen {
		return ErrOrderNotOpen
	}
	vault := DeriveVaultAddress(order.Address, order.ListedAsset)
	balance, err := e.accountBalance(vault, order.ListedAsset)
	if err != nil {
		return err
	}
	if balance.Sign() > 0 {
		if err := e.transferAsset(vault, order.Creator, order.ListedAsset, balance); err != nil {
			return err
		}
	}
	if err := e.state.OrderRemove(order.Address); err != nil {
		return err
	}
	e.emit(NewClosedEvent(order, balance))
	return nil
}

// Get returns the stored order at the given address after authenticating its
// derivation proof.
func (e *Engine) Get(orderAddr [20]byte) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, err := e.loadOrder(orderAddr)
	if err != nil {
		return nil, err
	}
	return order.Clone(), nil
}

func (e *Engine) loadOrder(addr [20]byte) (*Order, error) {
	order, ok := e.state.OrderGet(addr)
	if !ok {
		return nil, ErrOrderNotFound
	}
	sanitized, err := SanitizeOrder(order)
	if err != nil {
		return nil, err
	}
	if !VerifyOrderAddress(sanitized.Creator, sanitized.ListedAsset, sanitized.Nonce, sanitized.Bump, sanitized.Address) {
		return nil, ErrInvalidOrderAccount
	}
	return sanitized, nil
}

func (e *Engine) accountBalance(addr [20]byte, symbol string) (*big.Int, error) {
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return account.Balance(symbol), nil
}

// transferAsset moves amount units of the asset between two ledger accounts.
// It is the only path that debits a vault and is never exposed to external
// callers directly; the three request types authorize it internally.
func (e *Engine) transferAsset(from, to [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative transfer amount", ErrInvalidParameters)
	}
	if from == to {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromBal := fromAcc.Balance(symbol)
	if fromBal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	fromAcc.SetBalance(symbol, new(big.Int).Sub(fromBal, amount))
	toAcc.SetBalance(symbol, new(big.Int).Add(toAcc.Balance(symbol), amount))
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}
