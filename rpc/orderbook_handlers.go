package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"swapbook/crypto"
	"swapbook/native/orderbook"
)

type orderPlaceParams struct {
	Creator        string `json:"creator"`
	ListedAsset    string `json:"listedAsset"`
	AcceptingAsset string `json:"acceptingAsset"`
	ListedAmount   string `json:"listedAmount"`
	ListedPrice    string `json:"listedPrice"`
	Kind           string `json:"kind"`
	Nonce          uint8  `json:"nonce"`
}

type orderResolveParams struct {
	Caller     string `json:"caller"`
	BuyOrder   string `json:"buyOrder"`
	SellOrder  string `json:"sellOrder"`
	FillAmount string `json:"fillAmount"`
}

type orderCloseParams struct {
	Caller string `json:"caller"`
	Order  string `json:"order"`
}

type orderIDParams struct {
	Order string `json:"order"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type orderJSON struct {
	Address        string `json:"address"`
	Vault          string `json:"vault"`
	Creator        string `json:"creator"`
	ListedAsset    string `json:"listedAsset"`
	ListedAmount   string `json:"listedAmount"`
	ListedPrice    string `json:"listedPrice"`
	AcceptingAsset string `json:"acceptingAsset"`
	FilledAmount   string `json:"filledAmount"`
	Kind           string `json:"kind"`
	Status         string `json:"status"`
	Nonce          uint8  `json:"nonce"`
	Bump           uint8  `json:"bump"`
	CreatedAt      int64  `json:"createdAt"`
}

type resolveResult struct {
	FillAmount     string    `json:"fillAmount"`
	AmountToSeller string    `json:"amountToSeller"`
	BuyOrder       orderJSON `json:"buyOrder"`
	SellOrder      orderJSON `json:"sellOrder"`
}

type balanceResult struct {
	Address  string            `json:"address"`
	Nonce    uint64            `json:"nonce"`
	Balances map[string]string `json:"balances"`
}

type assetJSON struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func orderToJSON(o *orderbook.Order) orderJSON {
	vault := orderbook.DeriveVaultAddress(o.Address, o.ListedAsset)
	return orderJSON{
		Address:        crypto.NewAddress(crypto.SBKPrefix, o.Address[:]).String(),
		Vault:          crypto.NewAddress(crypto.SBKPrefix, vault[:]).String(),
		Creator:        crypto.NewAddress(crypto.SBKPrefix, o.Creator[:]).String(),
		ListedAsset:    o.ListedAsset,
		ListedAmount:   strconv.FormatUint(o.ListedAmount, 10),
		ListedPrice:    strconv.FormatUint(o.ListedPrice, 10),
		AcceptingAsset: o.AcceptingAsset,
		FilledAmount:   strconv.FormatUint(o.FilledAmount, 10),
		Kind:           o.Kind.String(),
		Status:         o.Status.String(),
		Nonce:          o.Nonce,
		Bump:           o.Bump,
		CreatedAt:      o.CreatedAt,
	}
}

func parseBech32Address(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseUint64Field(name, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return parsed, nil
}

// orderErrorStatus maps engine errors to HTTP status and JSON-RPC codes per
// error class.
func orderErrorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, orderbook.ErrInvalidParameters),
		errors.Is(err, orderbook.ErrInvalidListedAsset),
		errors.Is(err, orderbook.ErrInvalidAcceptingAsset),
		errors.Is(err, orderbook.ErrInvalidOrderKind),
		errors.Is(err, orderbook.ErrAssetPairMismatch),
		errors.Is(err, orderbook.ErrAmountOverflow):
		return http.StatusBadRequest, codeOrderInvalidParams
	case errors.Is(err, orderbook.ErrNotCreator),
		errors.Is(err, orderbook.ErrUnauthorizedAuthority):
		return http.StatusForbidden, codeOrderForbidden
	case errors.Is(err, orderbook.ErrOrderNotFound):
		return http.StatusNotFound, codeOrderNotFound
	case errors.Is(err, orderbook.ErrDuplicateOrder),
		errors.Is(err, orderbook.ErrOrderNotOpen),
		errors.Is(err, orderbook.ErrStaleOrder),
		errors.Is(err, orderbook.ErrInsufficientFunds),
		errors.Is(err, orderbook.ErrVaultUnderfunded),
		errors.Is(err, orderbook.ErrInvalidOrderAccount):
		return http.StatusConflict, codeOrderConflict
	default:
		return http.StatusInternalServerError, codeOrderInternal
	}
}

func writeOrderError(w http.ResponseWriter, id interface{}, err error) {
	status, code := orderErrorStatus(err)
	writeError(w, status, id, code, "orderbook_error", err.Error())
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleOrderPlace(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params orderPlaceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	creator, err := parseBech32Address(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseUint64Field("listedAmount", params.ListedAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseUint64Field("listedPrice", params.ListedPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	kind, err := orderbook.ParseOrderKind(params.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", "kind must be buy or sell")
		return
	}
	order, err := s.node.PlaceOrder(creator, params.ListedAsset, params.AcceptingAsset, amount, price, kind, params.Nonce)
	if err != nil {
		writeOrderError(w, req.ID, err)
		return
	}
	s.metrics.Orders.Inc()
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) handleOrderResolve(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params orderResolveParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	buyAddr, err := parseBech32Address(params.BuyOrder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	sellAddr, err := parseBech32Address(params.SellOrder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	fillAmount, err := parseUint64Field("fillAmount", params.FillAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.node.ResolveOrder(caller, buyAddr, sellAddr, fillAmount)
	if err != nil {
		writeOrderError(w, req.ID, err)
		return
	}
	s.metrics.Settlements.Inc()
	writeResult(w, req.ID, resolveResult{
		FillAmount:     strconv.FormatUint(receipt.FillAmount, 10),
		AmountToSeller: strconv.FormatUint(receipt.AmountToSeller, 10),
		BuyOrder:       orderToJSON(receipt.BuyOrder),
		SellOrder:      orderToJSON(receipt.SellOrder),
	})
}

func (s *Server) handleOrderClose(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params orderCloseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	orderAddr, err := parseBech32Address(params.Order)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CloseOrder(caller, orderAddr); err != nil {
		writeOrderError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"closed": true})
}

func (s *Server) handleOrderGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params orderIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	orderAddr, err := parseBech32Address(params.Order)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := s.node.GetOrder(orderAddr)
	if err != nil {
		writeOrderError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderToJSON(order))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOrderInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr)
	if err != nil {
		writeOrderError(w, req.ID, err)
		return
	}
	balances := make(map[string]string, len(account.Balances))
	for symbol := range account.Balances {
		balances[symbol] = account.Balance(symbol).String()
	}
	writeResult(w, req.ID, balanceResult{
		Address:  crypto.NewAddress(crypto.SBKPrefix, addr[:]).String(),
		Nonce:    account.Nonce,
		Balances: balances,
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	assets, err := s.node.Assets()
	if err != nil {
		writeOrderError(w, req.ID, err)
		return
	}
	out := make([]assetJSON, 0, len(assets))
	for _, asset := range assets {
		out = append(out, assetJSON{Symbol: asset.Symbol, Decimals: asset.Decimals})
	}
	writeResult(w, req.ID, out)
}
