package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"swapbook/config"
	"swapbook/core"
	"swapbook/core/events"
	"swapbook/core/types"
	"swapbook/crypto"
	"swapbook/observability/logging"
	"swapbook/rpc"
	"swapbook/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("SWAPBOOK_ENV"))
	logger := logging.Setup("swapbookd", env, cfg.LogLevel)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	authority, err := crypto.DecodeAddress(cfg.AuthorityAddress)
	if err != nil {
		panic(fmt.Sprintf("Failed to decode authority address: %v", err))
	}
	var authorityAddr [20]byte
	copy(authorityAddr[:], authority.Bytes())

	node := core.NewNode(db, authorityAddr)
	node.SetPaused(cfg.PausedModules)
	node.SetEmitter(&slogEmitter{logger: logger})

	for _, asset := range cfg.Assets {
		if err := node.RegisterAsset(asset.Symbol, asset.Decimals); err != nil {
			panic(fmt.Sprintf("Failed to register asset %s: %v", asset.Symbol, err))
		}
	}

	authToken := strings.TrimSpace(os.Getenv(cfg.AuthTokenEnv))
	if authToken == "" {
		logger.Warn("RPC bearer auth disabled; set the auth token to enable it",
			slog.String("env", cfg.AuthTokenEnv))
	}

	server := rpc.NewServer(node, authToken)

	logger.Info("swapbook node initialised and running",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("authority", cfg.AuthorityAddress))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}
}

// slogEmitter mirrors settlement events to the structured log.
type slogEmitter struct {
	logger *slog.Logger
}

func (e *slogEmitter) Emit(evt events.Event) {
	if e == nil || e.logger == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if payload, ok := evt.(interface{ Event() *types.Event }); ok {
		if inner := payload.Event(); inner != nil {
			for key, value := range inner.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	e.logger.Info("orderbook event", attrs...)
}
