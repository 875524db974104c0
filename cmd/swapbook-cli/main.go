package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"swapbook/crypto"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via SWAPBOOK_RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("SWAPBOOK_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		generateKey()
	case "place":
		if len(args) < 7 {
			fmt.Println("Error: place requires <key-file> <listed-asset> <accepting-asset> <amount> <price> <buy|sell> [nonce]")
			printUsage()
			return
		}
		nonce := "0"
		if len(args) > 7 {
			nonce = args[7]
		}
		placeOrder(args[1], args[2], args[3], args[4], args[5], args[6], nonce)
	case "resolve":
		if len(args) < 5 {
			fmt.Println("Error: resolve requires <key-file> <buy-order> <sell-order> <fill-amount>")
			printUsage()
			return
		}
		resolveOrders(args[1], args[2], args[3], args[4])
	case "close":
		if len(args) < 3 {
			fmt.Println("Error: close requires <key-file> <order>")
			printUsage()
			return
		}
		closeOrder(args[1], args[2])
	case "get":
		if len(args) < 2 {
			fmt.Println("Error: get requires an order address.")
			printUsage()
			return
		}
		getOrder(args[1])
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: balance requires an address.")
			printUsage()
			return
		}
		getBalance(args[1])
	case "assets":
		listAssets()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: swapbook-cli [--rpc <url>] <command> [args...]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key                                                    Create a new local key file")
	fmt.Println("  place <key-file> <listed> <accepting> <amount> <price> <kind> [nonce]")
	fmt.Println("                                                                  Open an order and escrow the listed amount")
	fmt.Println("  resolve <key-file> <buy-order> <sell-order> <fill-amount>       Settle a matched pair (authority only)")
	fmt.Println("  close <key-file> <order>                                        Refund and destroy an open order")
	fmt.Println("  get <order>                                                     Show a stored order")
	fmt.Println("  balance <address>                                               Show ledger balances for an address")
	fmt.Println("  assets                                                          List registered assets")
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("SWAPBOOK_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8645"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}

	fileName := "wallet.key"
	if err := os.WriteFile(fileName, key.Bytes(), 0600); err != nil {
		panic(fmt.Sprintf("Failed to save key to %s: %v", fileName, err))
	}

	fmt.Printf("Generated new key and saved to %s\n", fileName)
	fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
}

func loadAddress(keyFile string) (string, error) {
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("key file %s not found. run swapbook-cli generate-key first", keyFile)
		}
		return "", fmt.Errorf("failed to read key file %s: %w", keyFile, err)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse key in %s: %w", keyFile, err)
	}
	return key.PubKey().Address().String(), nil
}

func placeOrder(keyFile, listed, accepting, amount, price, kind, nonce string) {
	creator, err := loadAddress(keyFile)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	var nonceVal uint8
	if _, err := fmt.Sscanf(nonce, "%d", &nonceVal); err != nil {
		fmt.Printf("Error: invalid nonce %q\n", nonce)
		return
	}
	result, err := callRPC("orderbook_place", map[string]interface{}{
		"creator":        creator,
		"listedAsset":    listed,
		"acceptingAsset": accepting,
		"listedAmount":   amount,
		"listedPrice":    price,
		"kind":           kind,
		"nonce":          nonceVal,
	}, true)
	if err != nil {
		fmt.Printf("Error placing order: %v\n", err)
		return
	}
	printJSON(result)
}

func resolveOrders(keyFile, buyOrder, sellOrder, fillAmount string) {
	caller, err := loadAddress(keyFile)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	result, err := callRPC("orderbook_resolve", map[string]interface{}{
		"caller":     caller,
		"buyOrder":   buyOrder,
		"sellOrder":  sellOrder,
		"fillAmount": fillAmount,
	}, true)
	if err != nil {
		fmt.Printf("Error resolving orders: %v\n", err)
		return
	}
	printJSON(result)
}

func closeOrder(keyFile, order string) {
	caller, err := loadAddress(keyFile)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	result, err := callRPC("orderbook_close", map[string]interface{}{
		"caller": caller,
		"order":  order,
	}, true)
	if err != nil {
		fmt.Printf("Error closing order: %v\n", err)
		return
	}
	printJSON(result)
}

func getOrder(order string) {
	result, err := callRPC("orderbook_get", map[string]interface{}{"order": order}, false)
	if err != nil {
		fmt.Printf("Error fetching order: %v\n", err)
		return
	}
	printJSON(result)
}

func getBalance(addr string) {
	result, err := callRPC("orderbook_balance", map[string]interface{}{"address": addr}, false)
	if err != nil {
		fmt.Printf("Error fetching balance: %v\n", err)
		return
	}
	printJSON(result)
}

func listAssets() {
	result, err := callRPC("orderbook_assets", nil, false)
	if err != nil {
		fmt.Printf("Error fetching assets: %v\n", err)
		return
	}
	printJSON(result)
}

func callRPC(method string, param interface{}, requireAuth bool) (json.RawMessage, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if param != nil {
		payload["params"] = []interface{}{param}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth && strings.TrimSpace(rpcAuthToken) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int         `json:"code"`
			Message string      `json:"message"`
			Data    interface{} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node")
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Data != nil {
			return nil, fmt.Errorf("error from node: %s (%v)", rpcResp.Error.Message, rpcResp.Error.Data)
		}
		return nil, fmt.Errorf("error from node: %s", rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}
