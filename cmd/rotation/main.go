package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rotation/cmd"
	"rotation/internal/backtest"
	"rotation/internal/config"
	"rotation/internal/logger"
	"rotation/internal/ranking"
	"rotation/internal/reporting"
	"rotation/internal/screen"
	"rotation/internal/util"
)

var (
	flagConfig   string
	flagLogLevel string
	flagDataDir  string

	flagUniverse  string
	flagTop       int
	flagStartDate string
	flagBenchmark string
	flagTxCostBps float64
	flagSource    string
	flagRefresh   bool
	flagOut       string
	flagExpr      string
	flagPort      int
)

func main() {
	// Provider credentials may live in a local .env; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "rotation",
		Short:         "Monthly momentum rotation screener and backtester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "rotation.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory override")

	root.AddCommand(backtestCommand())
	root.AddCommand(screenCommand())
	root.AddCommand(fetchCommand())
	root.AddCommand(universeCommand())
	root.AddCommand(serveCommand())

	if err := root.Execute(); err != nil {
		logger.New().Error(err)
		os.Exit(1)
	}
}

// loadConfig layers the run config: file, then ROTATION_* env vars
// inside Load, then any flags the user set on this invocation.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if flagDataDir != "" {
		cfg.Data.Dir = flagDataDir
		cfg.Data.SQLitePath = flagDataDir + "/prices.db"
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if c.Flags().Changed("universe") {
		cfg.Universe = flagUniverse
	}
	if c.Flags().Changed("top") {
		cfg.TopN = flagTop
	}
	if c.Flags().Changed("start-date") {
		cfg.StartDate = flagStartDate
	}
	if c.Flags().Changed("benchmark") {
		cfg.Benchmark = flagBenchmark
	}
	if c.Flags().Changed("tx-cost-bps") {
		cfg.TxCostBps = flagTxCostBps
	}
	if c.Flags().Changed("source") {
		cfg.Data.Source = flagSource
	}
	if c.Flags().Changed("out") {
		cfg.Output.Dir = flagOut
	}
	if c.Flags().Changed("refresh") {
		cfg.Data.Refresh = flagRefresh
	}
	return cfg, nil
}

func runContext(cfg *config.Config) context.Context {
	log := logger.NewAtLevel(cfg.Logging.Level)
	return logger.AddToContext(context.Background(), log)
}

func addDataFlags(c *cobra.Command) {
	c.Flags().StringVar(&flagUniverse, "universe", "sp500", "universe name or CSV path")
	c.Flags().StringVar(&flagSource, "source", "yahoo", "primary price source (yahoo, alpaca)")
	c.Flags().BoolVar(&flagRefresh, "refresh", false, "refetch cached prices")
}

func backtestCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate the rotation strategy over history",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := runContext(cfg)

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			universeSet, err := handler.UniverseService.Load(cfg.Universe)
			if err != nil {
				return err
			}
			startDate, err := util.ParseDate(cfg.StartDate)
			if err != nil {
				return err
			}

			store, err := handler.PricingService.AssembleStore(
				ctx, universeSet.Symbols, cfg.Benchmark, startDate, time.Now().UTC(), cfg.Data.Refresh)
			if err != nil {
				return err
			}

			result, err := backtest.NewEngine(cfg.Weights).Run(ctx, cfg, store, universeSet)
			if err != nil {
				return err
			}

			paths, err := reporting.NewService(cfg.Output.Dir).WriteBacktestOutputs(result)
			if err != nil {
				return err
			}

			fmt.Println(reporting.ConsoleSummary(result.Summary))
			for _, path := range paths {
				fmt.Println("wrote", path)
			}
			return nil
		},
	}
	addDataFlags(c)
	c.Flags().IntVar(&flagTop, "top", 10, "number of symbols to hold")
	c.Flags().StringVar(&flagStartDate, "start-date", "", "backtest start date (YYYY-MM-DD)")
	c.Flags().StringVar(&flagBenchmark, "benchmark", "SPY", "benchmark symbol")
	c.Flags().Float64Var(&flagTxCostBps, "tx-cost-bps", 0, "transaction cost in basis points of turnover")
	c.Flags().StringVar(&flagOut, "out", "output", "output directory")
	return c
}

func screenCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "screen",
		Short: "Rank the universe as of the latest trading day",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := runContext(cfg)

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			universeSet, err := handler.UniverseService.Load(cfg.Universe)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			store, err := handler.PricingService.AssembleStore(
				ctx, universeSet.Symbols, cfg.Benchmark, now, now, cfg.Data.Refresh)
			if err != nil {
				return err
			}

			service := screen.NewService(ranking.NewService(cfg.Weights))
			result, err := service.Run(ctx, store, universeSet, cfg.TopN, flagExpr)
			if err != nil {
				return err
			}

			paths, err := reporting.NewService(cfg.Output.Dir).WriteScreenOutputs(result, uuid.New())
			if err != nil {
				return err
			}

			fmt.Println(reporting.ConsoleScreen(result))
			for _, path := range paths {
				fmt.Println("wrote", path)
			}
			return nil
		},
	}
	addDataFlags(c)
	c.Flags().IntVar(&flagTop, "top", 10, "number of symbols in the buy list")
	c.Flags().StringVar(&flagBenchmark, "benchmark", "SPY", "benchmark symbol")
	c.Flags().StringVar(&flagExpr, "expr", "", "custom ranking expression over snapshot fields")
	c.Flags().StringVar(&flagOut, "out", "output", "output directory")
	return c
}

func fetchCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "fetch",
		Short: "Warm the price cache for a universe",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := runContext(cfg)

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			universeSet, err := handler.UniverseService.Load(cfg.Universe)
			if err != nil {
				return err
			}
			startDate, err := util.ParseDate(cfg.StartDate)
			if err != nil {
				return err
			}

			fetched, err := handler.PricingService.WarmCache(
				ctx, universeSet.Symbols, cfg.Benchmark, startDate, time.Now().UTC(), cfg.Data.Refresh)
			if err != nil {
				return err
			}

			fmt.Printf("fetched %d of %d symbols, rest already cached\n",
				fetched, len(universeSet.Symbols)+1)
			return nil
		},
	}
	addDataFlags(c)
	c.Flags().StringVar(&flagStartDate, "start-date", "", "history start date (YYYY-MM-DD)")
	c.Flags().StringVar(&flagBenchmark, "benchmark", "SPY", "benchmark symbol")
	return c
}

func universeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "universe",
		Short: "Manage universe files",
	}
	update := &cobra.Command{
		Use:   "update",
		Short: "Rebuild universe files from constituents and holdings",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := runContext(cfg)

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			return handler.UniverseService.Update(ctx)
		},
	}
	c.AddCommand(update)
	return c
}

func serveCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve backtest and screen over HTTP",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.Flags().Changed("port") {
				cfg.Server.Port = flagPort
			}

			handler, err := cmd.InitializeDependencies(cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			logger.NewAtLevel(cfg.Logging.Level).Infow("serving", "port", cfg.Server.Port)
			return handler.StartApi(cfg.Server.Port)
		},
	}
	c.Flags().IntVar(&flagPort, "port", 8080, "listen port")
	return c
}
