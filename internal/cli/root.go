// Package cli implements the command-line interface for folio.
package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/config"
	"github.com/kilupskalvis/folio/internal/core"
	"github.com/kilupskalvis/folio/internal/events"
	"github.com/kilupskalvis/folio/internal/logger"
	"github.com/kilupskalvis/folio/internal/models"
	"github.com/kilupskalvis/folio/internal/store"
	"github.com/kilupskalvis/folio/internal/weaviate"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	Store  *store.Store
	Log    *logger.Logger
	Engine *core.Engine
	Bus    *events.Bus

	closers []func() error
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	if c.Bus != nil {
		c.Bus.Close()
	}
	if c.Store != nil {
		c.Store.Close()
	}
	if c.Log != nil {
		c.Log.Sync()
	}
}

// initContext initializes config, logger and ledger store (no backend)
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		log = logger.Nop()
	}

	st, err := store.New(cfg.LedgerPath())
	if err != nil {
		exitError("failed to open ledger: %v", err)
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		exitError("failed to initialize ledger: %v", err)
	}

	return &cmdContext{Config: cfg, Store: st, Log: log}
}

// initEngineContext initializes everything plus the content backend,
// invalidation bus and engine
func initEngineContext(ctx context.Context) *cmdContext {
	c := initContext()

	backend, closer, err := openBackend(c.Config)
	if err != nil {
		c.Close()
		exitError("%v", err)
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}

	c.Bus = events.NewBus(c.Log)
	if c.Config.RedisAddr != "" {
		sink, err := events.NewRedisSink(ctx, c.Config.RedisAddr, c.Config.RedisChannel)
		if err != nil {
			c.Log.Warn("redis invalidation disabled", "addr", c.Config.RedisAddr, "error", err)
		} else {
			c.Bus.AddSink(events.NewRetrySink(sink, nil))
			c.closers = append(c.closers, sink.Close)
		}
	}

	opts := core.Options{
		StaleAfter:  c.Config.StaleAfter(),
		RecentLimit: c.Config.SnapshotLimit,
	}
	c.Engine = core.NewEngine(c.Store, collection.NewRegistry(backend), c.Bus, c.Log, opts)
	return c
}

// openBackend opens the configured content backend
func openBackend(cfg *config.Config) (collection.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(cfg.WeaviateURL, cfg.SupportsSorting())
		if err != nil {
			return nil, nil, err
		}
		return weaviate.NewBackend(client), nil, nil
	default:
		db, err := collection.NewSQLite(cfg.ContentDBPath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open content database: %w", err)
		}
		if err := db.Initialize(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize content database: %w", err)
		}
		return db, db.Close, nil
	}
}

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Content plans with undo",
	Long: `folio applies batches of content changes (plans) to a portfolio site's
collections, records every change in a ledger, and can revert a whole plan
or a single change.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// invalidatedSummary drains pending events and lists the touched resources
func invalidatedSummary(ch <-chan models.ContentChanged) string {
	seen := make(map[string]bool)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return joinSorted(seen)
			}
			for _, r := range ev.Resources() {
				seen[string(r)] = true
			}
		default:
			return joinSorted(seen)
		}
	}
}

func joinSorted(set map[string]bool) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
