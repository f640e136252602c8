package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/assist"
	"github.com/ziadkadry99/pageblocks/internal/audit"
	"github.com/ziadkadry99/pageblocks/internal/config"
	"github.com/ziadkadry99/pageblocks/internal/console"
	"github.com/ziadkadry99/pageblocks/internal/db"
	"github.com/ziadkadry99/pageblocks/internal/server"
	"github.com/ziadkadry99/pageblocks/internal/theme"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the builder host service",
	Long:  `Starts the HTTP host: document API, live builder sessions over websocket, preview rendering, AI generation and the optional console.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	catalog := theme.NewCatalog(cfg.Preview.ThemeDirs...)
	if cfg.Preview.WatchTheme {
		watcher, err := theme.NewWatcher(catalog, 0, func(n int) {
			if verbose {
				log.Printf("[theme] class catalog rebuilt: %d classes", n)
			}
		})
		if err != nil {
			log.Printf("[theme] watching disabled: %v", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	srv := server.New(serverConfig(cfg), server.Deps{
		DB:      database,
		Signer:  signer,
		AI:      assist.NewService(resolveKeys(cfg), cfg.DefaultModel(), cfg.AI.RatePerMinute),
		Console: newExecutor(cfg, database),
		Catalog: catalog,
		Styles:  cfg.Preview.ThemeStyleURLs,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "pageblocks %s starting on port %d\n", Version, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
	fmt.Fprintf(os.Stderr, "  Theme dirs: %v\n", catalog.Dirs())
	if cfg.Console.Enabled {
		fmt.Fprintln(os.Stderr, "  Console: enabled")
	}

	if err := srv.Start(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Port:              cfg.Server.Port,
		PublicURL:         cfg.Server.PublicURL,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		AllowAll:          cfg.Server.AllowAll,
		RatePerMinute:     cfg.AI.RatePerMinute,
		AllowTemplateExec: cfg.Security.AllowTemplateExec,
		Delays:            cfg.Delays(),
		AutosaveInterval:  cfg.AutosaveInterval(),
		ApplyMinInterval:  cfg.ApplyMinInterval(),
		AssetFilter:       cfg.AssetFilter(),
		Injection:         cfg.Preview.Injection,
	}
}

func newExecutor(cfg *config.Config, database *db.DB) *console.Executor {
	return &console.Executor{
		Enabled: cfg.Console.Enabled,
		Shell:   cfg.Console.Shell,
		Timeout: cfg.ConsoleTimeout(),
		Root:    cfg.Console.Root,
		Audit:   audit.NewStore(database),
	}
}
