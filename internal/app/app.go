// Package app builds the object graph from configuration and runs the agent
// and the status server together.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"scalper/internal/agent"
	"scalper/internal/config"
	"scalper/internal/consensus"
	"scalper/internal/executor"
	"scalper/internal/feature"
	"scalper/internal/history"
	"scalper/internal/ledger"
	"scalper/internal/logger"
	"scalper/internal/notifier"
	"scalper/internal/oracle"
	"scalper/internal/prompt"
	"scalper/internal/store/sqlite"
	statushttp "scalper/internal/transport/http"
	"scalper/internal/venue/bridge"
)

// App owns every long-lived component. Construction verifies venue
// connectivity; Run blocks until ctx ends or a component fails.
type App struct {
	cfg     config.Config
	agent   *agent.Agent
	server  *statushttp.Server
	prompts *prompt.Library
	cycles  *history.Store
	orders  *sqlite.Store
}

// New builds the application without starting it. A venue that cannot report
// account state is a startup failure, not a retry loop.
func New(cfg config.Config) (*App, error) {
	client, err := bridge.NewClient(cfg.Venue)
	if err != nil {
		return nil, fmt.Errorf("building venue client: %w", err)
	}
	account, err := client.AccountInfo(context.Background())
	if err != nil {
		return nil, fmt.Errorf("venue unreachable: %w", err)
	}
	logger.Infof("✓ venue connected login=%d balance=%.2f %s",
		account.Login, account.Balance, account.Currency)

	book, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	var orders *sqlite.Store
	if cfg.History.OrdersPath != "" {
		orders, err = sqlite.Open(cfg.History.OrdersPath)
		if err != nil {
			return nil, fmt.Errorf("opening order event store: %w", err)
		}
	}
	var cycles *history.Store
	if cfg.History.Path != "" {
		cycles, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cycle history: %w", err)
		}
	}

	prompts, err := prompt.NewLibrary(cfg.Oracle.SystemPath, cfg.Oracle.PromptPath)
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	providers := oracle.BuildProviders(cfg.Oracle)
	aggregator := consensus.NewAggregator(providers, cfg.Consensus, cfg.Oracle)

	source, err := feature.NewSource(cfg.Feature, cfg.Trading.Symbol, client)
	if err != nil {
		return nil, fmt.Errorf("building candle source: %w", err)
	}
	features := feature.NewBuilder(source, cfg.Feature.Timeframes, cfg.Oracle.CapturePath)

	var notify notifier.TextNotifier = notifier.Nop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	exec := executor.New(client, book, orders, cfg.Trading)
	ag := agent.New(cfg, aggregator, exec, features, prompts, cycles, notify)

	var server *statushttp.Server
	if cfg.App.HTTPAddr != "" {
		server, err = statushttp.NewServer(statushttp.ServerConfig{
			Addr:   cfg.App.HTTPAddr,
			Agent:  ag,
			Ledger: book,
			Cycles: cycles,
			Orders: orders,
		})
		if err != nil {
			return nil, fmt.Errorf("building status server: %w", err)
		}
	}

	return &App{
		cfg:     cfg,
		agent:   ag,
		server:  server,
		prompts: prompts,
		cycles:  cycles,
		orders:  orders,
	}, nil
}

// Run starts the loop and, if configured, the status server. The first
// component to fail stops the other through the shared context.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	if a.server != nil {
		group.Go(func() error {
			logger.Infof("status server listening on %s", a.server.Addr())
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		defer a.close()
		err := a.agent.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return group.Wait()
}

func (a *App) close() {
	if err := a.prompts.Close(); err != nil {
		logger.Warnf("closing prompt watcher: %v", err)
	}
	if err := a.cycles.Close(); err != nil {
		logger.Warnf("closing cycle history: %v", err)
	}
	if err := a.orders.Close(); err != nil {
		logger.Warnf("closing order event store: %v", err)
	}
}
