package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "Opinion Arena - autonomous multi-agent prediction market trading",
		Long: `Opinion Arena runs five model-backed trading firms against a binary
prediction market venue. Each firm analyses markets through a shared
collector battery, sizes bets with its own bankroll strategy, and is
gated by an adaptive risk guard.

Use 'arena serve' to run the HTTP server with the cron scheduler, or
trigger individual runs with 'arena cycle' and 'arena monitor'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/opinion-arena)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newCycleCmd(app))
	rootCmd.AddCommand(newMonitorCmd(app))
	rootCmd.AddCommand(newInitPortfoliosCmd(app))
	rootCmd.AddCommand(newLeaderboardCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
				return
			}
			output.Printf("Opinion Arena v%s\n", Version)
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
				return
			}
			output.Println(config.DefaultConfigDir())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("System")
	output.Printf("  Enabled:         %v\n", cfg.System.Enabled)
	output.Printf("  Log Level:       %s\n", cfg.System.LogLevel)
	output.Println()

	output.Bold("Bankroll")
	output.Printf("  Mode:            %s\n", cfg.Bankroll.Mode)
	output.Printf("  Initial Balance: %.2f\n", cfg.Bankroll.InitialBalance)
	output.Printf("  Daily Spend Cap: %.2f\n", cfg.Bankroll.DailySpendCap)
	output.Println()

	output.Bold("Engine")
	output.Printf("  Fee Rate:        %.2f%%\n", cfg.Engine.FeeRate*100)
	output.Printf("  Min Bet:         %.2f\n", cfg.Engine.MinBet)
	output.Printf("  Kelly Fraction:  %.2f\n", cfg.Engine.KellyFraction)
	output.Println()

	output.Bold("Cycle")
	output.Printf("  Deadline:        %s\n", cfg.Cycle.Deadline)
	output.Printf("  Max Markets:     %d\n", cfg.Cycle.MaxMarkets)
	output.Printf("  Per Firm:        %d\n", cfg.Cycle.MarketsPerFirm)
	output.Printf("  Schedule:        %s\n", cfg.Cycle.CronSpec)
	output.Println()

	output.Bold("Firms")
	for _, f := range cfg.Firms {
		output.Printf("  %-10s %s (%s)\n", f.Name, f.ModelID, f.Strategy)
	}
	return nil
}
