package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"swapbook/core"
	"swapbook/crypto"
	"swapbook/storage"
)

const testToken = "secret-token"

func rpcAddr(fill byte) ([20]byte, string) {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr, crypto.NewAddress(crypto.SBKPrefix, addr[:]).String()
}

func newTestServer(t *testing.T) (*Server, *core.Node, [20]byte) {
	t.Helper()
	authority, _ := rpcAddr(0xFE)
	node := core.NewNode(storage.NewMemDB(), authority)
	node.SetNowFunc(func() int64 { return 1700000000 })
	if err := node.RegisterAsset("AAA", 0); err != nil {
		t.Fatalf("register AAA: %v", err)
	}
	if err := node.RegisterAsset("BBB", 0); err != nil {
		t.Fatalf("register BBB: %v", err)
	}
	return NewServer(node, testToken), node, authority
}

func callRPC(t *testing.T, server *Server, token, method string, params interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	request := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		request["params"] = []interface{}{params}
	}
	body, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return recorder, resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
}

func TestRPCLifecycle(t *testing.T) {
	server, node, authority := newTestServer(t)
	buyerKey, buyerBech := rpcAddr(0x01)
	sellerKey, sellerBech := rpcAddr(0x02)
	authorityBech := crypto.NewAddress(crypto.SBKPrefix, authority[:]).String()
	if err := node.MintBalance(buyerKey, "BBB", 1000); err != nil {
		t.Fatalf("mint buyer: %v", err)
	}
	if err := node.MintBalance(sellerKey, "AAA", 500); err != nil {
		t.Fatalf("mint seller: %v", err)
	}

	var buy orderJSON
	_, resp := callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        buyerBech,
		ListedAsset:    "BBB",
		AcceptingAsset: "AAA",
		ListedAmount:   "1000",
		ListedPrice:    "2",
		Kind:           "buy",
	})
	decodeResult(t, resp, &buy)
	if buy.Status != "open" || buy.ListedAmount != "1000" {
		t.Fatalf("unexpected buy order %+v", buy)
	}
	if !strings.HasPrefix(buy.Vault, string(crypto.SBKPrefix)) {
		t.Fatalf("vault address missing prefix: %s", buy.Vault)
	}

	var sell orderJSON
	_, resp = callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        sellerBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "500",
		ListedPrice:    "2",
		Kind:           "sell",
	})
	decodeResult(t, resp, &sell)

	var settled resolveResult
	_, resp = callRPC(t, server, testToken, "orderbook_resolve", orderResolveParams{
		Caller:     authorityBech,
		BuyOrder:   buy.Address,
		SellOrder:  sell.Address,
		FillAmount: "500",
	})
	decodeResult(t, resp, &settled)
	if settled.AmountToSeller != "1000" {
		t.Fatalf("expected amountToSeller 1000, got %s", settled.AmountToSeller)
	}
	if settled.BuyOrder.Status != "filled" || settled.SellOrder.Status != "filled" {
		t.Fatalf("expected both orders filled: %+v", settled)
	}

	var fetched orderJSON
	_, resp = callRPC(t, server, "", "orderbook_get", orderIDParams{Order: sell.Address})
	decodeResult(t, resp, &fetched)
	if fetched.FilledAmount != "500" || fetched.Status != "filled" {
		t.Fatalf("unexpected stored order %+v", fetched)
	}

	var balance balanceResult
	_, resp = callRPC(t, server, "", "orderbook_balance", balanceParams{Address: sellerBech})
	decodeResult(t, resp, &balance)
	if balance.Balances["BBB"] != "1000" {
		t.Fatalf("seller balance mismatch: %v", balance.Balances)
	}

	var assets []assetJSON
	_, resp = callRPC(t, server, "", "orderbook_assets", nil)
	decodeResult(t, resp, &assets)
	if len(assets) != 2 || assets[0].Symbol != "AAA" {
		t.Fatalf("unexpected asset list %v", assets)
	}
}

func TestRPCCloseOrder(t *testing.T) {
	server, node, _ := newTestServer(t)
	creatorKey, creatorBech := rpcAddr(0x03)
	if err := node.MintBalance(creatorKey, "AAA", 500); err != nil {
		t.Fatalf("mint: %v", err)
	}

	var order orderJSON
	_, resp := callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        creatorBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "500",
		ListedPrice:    "2",
		Kind:           "sell",
	})
	decodeResult(t, resp, &order)

	_, resp = callRPC(t, server, testToken, "orderbook_close", orderCloseParams{
		Caller: creatorBech,
		Order:  order.Address,
	})
	var closed map[string]bool
	decodeResult(t, resp, &closed)
	if !closed["closed"] {
		t.Fatalf("expected closed=true, got %v", closed)
	}

	recorder, resp := callRPC(t, server, "", "orderbook_get", orderIDParams{Order: order.Address})
	if resp.Error == nil || resp.Error.Code != codeOrderNotFound {
		t.Fatalf("expected order not found, got %+v", resp.Error)
	}
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestRPCMutationsRequireBearerToken(t *testing.T) {
	server, _, _ := newTestServer(t)
	_, creatorBech := rpcAddr(0x04)

	params := orderPlaceParams{
		Creator:        creatorBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "10",
		ListedPrice:    "2",
		Kind:           "sell",
	}
	recorder, resp := callRPC(t, server, "", "orderbook_place", params)
	if recorder.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got status=%d error=%+v", recorder.Code, resp.Error)
	}
	recorder, resp = callRPC(t, server, "wrong-token", "orderbook_place", params)
	if recorder.Code != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("expected unauthorized for bad token, got status=%d", recorder.Code)
	}

	// Reads stay open without a token.
	_, resp = callRPC(t, server, "", "orderbook_assets", nil)
	if resp.Error != nil {
		t.Fatalf("read should not require auth: %+v", resp.Error)
	}
}

func TestRPCErrorMapping(t *testing.T) {
	server, node, _ := newTestServer(t)
	creatorKey, creatorBech := rpcAddr(0x05)
	_, strangerBech := rpcAddr(0x06)
	if err := node.MintBalance(creatorKey, "AAA", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Parameter validation maps to 400.
	recorder, resp := callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        creatorBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "0",
		ListedPrice:    "2",
		Kind:           "sell",
	})
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeOrderInvalidParams {
		t.Fatalf("expected invalid params, got status=%d error=%+v", recorder.Code, resp.Error)
	}

	// Insufficient balance maps to 409.
	recorder, resp = callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        creatorBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "500",
		ListedPrice:    "2",
		Kind:           "sell",
	})
	if recorder.Code != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeOrderConflict {
		t.Fatalf("expected conflict, got status=%d error=%+v", recorder.Code, resp.Error)
	}

	// A non-authority caller maps to 403.
	var order orderJSON
	_, resp = callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        creatorBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "100",
		ListedPrice:    "2",
		Kind:           "sell",
	})
	decodeResult(t, resp, &order)
	recorder, resp = callRPC(t, server, testToken, "orderbook_resolve", orderResolveParams{
		Caller:     strangerBech,
		BuyOrder:   order.Address,
		SellOrder:  order.Address,
		FillAmount: "10",
	})
	if recorder.Code != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeOrderForbidden {
		t.Fatalf("expected forbidden, got status=%d error=%+v", recorder.Code, resp.Error)
	}

	// Malformed amounts are rejected before touching the node.
	recorder, resp = callRPC(t, server, testToken, "orderbook_place", orderPlaceParams{
		Creator:        creatorBech,
		ListedAsset:    "AAA",
		AcceptingAsset: "BBB",
		ListedAmount:   "not-a-number",
		ListedPrice:    "2",
		Kind:           "sell",
	})
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeOrderInvalidParams {
		t.Fatalf("expected invalid params for bad amount, got status=%d error=%+v", recorder.Code, resp.Error)
	}
}

func TestRPCTransportErrors(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	recorder = httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}

	_, resp = callRPC(t, server, "", "orderbook_unknown", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestRPCEchoesStringRequestID(t *testing.T) {
	server, _, _ := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":"req-42","method":"orderbook_assets"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	var resp RPCResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if id, ok := resp.ID.(string); !ok || id != "req-42" {
		t.Fatalf("expected id echoed as %q, got %v", "req-42", resp.ID)
	}
}
