package cli

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/folio/internal/collection"
	"github.com/kilupskalvis/folio/internal/config"
	"github.com/kilupskalvis/folio/internal/store"
	"github.com/kilupskalvis/folio/internal/weaviate"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new folio workspace",
	Long: `Initialize a new folio workspace in the current directory.
This creates a .folio directory holding the configuration, the plan and
change ledger, and (for the sqlite backend) the content database.`,
	Run: runInit,
}

var (
	initBackend string
	initURL     string
	initRedis   string
)

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendSQLite, "Content backend (sqlite or weaviate)")
	initCmd.Flags().StringVar(&initURL, "url", "http://localhost:8080", "Weaviate server URL")
	initCmd.Flags().StringVar(&initRedis, "redis", "", "Redis address for invalidation events")
}

func runInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError("folio workspace already exists")
	}

	opts := config.InitOptions{Backend: initBackend, RedisAddr: initRedis}
	if initBackend == config.BackendWeaviate {
		opts.WeaviateURL = initURL
	}

	fmt.Printf("Initializing folio workspace...\n")
	fmt.Printf("Backend: %s\n", initBackend)

	var serverVersion string
	var wv *weaviate.Client
	if initBackend == config.BackendWeaviate {
		client, err := weaviate.NewClient(initURL, true)
		if err != nil {
			exitError("failed to create Weaviate client: %v", err)
		}

		fmt.Printf("Connecting to Weaviate at %s...\n", initURL)
		if err := client.Ping(ctx); err != nil {
			exitError("failed to connect to Weaviate: %v", err)
		}

		version, err := client.GetServerVersion(ctx)
		if err != nil {
			fmt.Printf("Warning: Could not detect Weaviate version\n")
		} else {
			serverVersion = version.Version
			fmt.Printf("Weaviate version: %s\n", version.Version)
			if !version.SupportsFeature("sorting") {
				fmt.Printf("Warning: Server < 1.13, recent records are sorted locally (slower for large collections)\n")
			}
		}
		wv = client
	}

	cfg, err := config.Initialize(opts)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	// Store detected server version
	if serverVersion != "" {
		cfg.ServerVersion = serverVersion
		if err := cfg.Save(); err != nil {
			fmt.Printf("Warning: Could not save server version to config: %v\n", err)
		}
	}

	st, err := store.New(cfg.LedgerPath())
	if err != nil {
		exitError("failed to create ledger: %v", err)
	}
	defer st.Close()

	if err := st.Initialize(); err != nil {
		exitError("failed to initialize ledger: %v", err)
	}

	switch {
	case wv != nil:
		created, err := weaviate.NewBackend(wv).EnsureClasses(ctx)
		if err != nil {
			exitError("failed to create classes: %v", err)
		}
		if len(created) > 0 {
			fmt.Printf("Created %d class(es)\n", len(created))
		}
	default:
		db, err := collection.NewSQLite(cfg.ContentDBPath())
		if err != nil {
			exitError("failed to create content database: %v", err)
		}
		defer db.Close()
		if err := db.Initialize(); err != nil {
			exitError("failed to initialize content database: %v", err)
		}
	}

	fmt.Printf("\nInitialized folio workspace in %s/\n", config.FolioDir)
	if initRedis != "" {
		fmt.Printf("Publishing invalidation events to redis at %s\n", initRedis)
	}
}
