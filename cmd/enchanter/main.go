package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/enchanter-io/enchanter/chain"
	"github.com/enchanter-io/enchanter/config"
	"github.com/enchanter-io/enchanter/db"
	"github.com/enchanter-io/enchanter/entitystore"
	"github.com/enchanter-io/enchanter/ingest"
	"github.com/enchanter-io/enchanter/logger"
	"github.com/enchanter-io/enchanter/tracker"
)

const (
	programName = "enchanter"
	dbFileName  = "enchanter.db"
)

var (
	globalFlags = struct {
		configFile string
		debug      bool
	}{}
)

// app carries the wired-up engine for one CLI invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	database *db.DB
	store    *entitystore.Store
	ingestor *ingest.Ingestor
	tracker  *tracker.Client
}

func openApp() (*app, error) {
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if globalFlags.debug {
		level = int(zerolog.DebugLevel)
	}
	log := logger.New(level, cfg.LogFormat)

	database, err := db.OpenFileDB(cfg.DataDir, dbFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := entitystore.NewStore(database, log)
	return &app{
		cfg:      cfg,
		log:      log,
		database: database,
		store:    store,
		ingestor: ingest.New(store, log),
		tracker: tracker.NewClient(
			cfg.TrackerURL,
			time.Duration(cfg.TrackerTimeoutSeconds)*time.Second,
			log,
		),
	}, nil
}

func (a *app) Close() {
	if err := a.database.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}

func (a *app) chainClient(chainID string) (*chain.Client, error) {
	network, ok := a.cfg.Network(chainID)
	if !ok || len(network.RPCURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs configured for chain %s", chainID)
	}
	return chain.NewClient(chainID, network.RPCURLs, a.log)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Offline coordination for multisig wallet approvals",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(
		importCommand(),
		exportCommand(),
		listCommand(),
		showCommand(),
		statusCommand(),
		diffCommand(),
		walletsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
