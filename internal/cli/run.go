package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shilder25/opinion-arena/internal/portfolio"
)

func newCycleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one trading cycle now",
		Long: `Runs a complete trading cycle immediately: fetch tradable markets,
evaluate them firm by firm, submit approved bets, reconcile fills and
resolutions. Respects the configured cycle deadline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.build(); err != nil {
				return err
			}
			defer app.close()

			output := NewOutput(cmd)
			res, err := app.Orchestrator.Run(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}

			rec := res.Cycle
			output.Bold("Cycle %s: %s", rec.ID, rec.Status)
			output.Printf("  Markets:   %d fetched, %d tradable\n", rec.MarketsFetched, rec.MarketsTradable)
			output.Printf("  Bets:      %d approved, %d executed, %d failed\n", rec.BetsApproved, rec.BetsExecuted, rec.BetsFailed)
			output.Printf("  Settled:   %d filled, %d resolved, %d redeemed\n", res.Reconciled.Filled, res.Reconciled.Resolved, res.Reconciled.Redeemed)
			if len(res.SkipReasons) > 0 {
				output.Println()
				output.Bold("Skips")
				for reason, n := range res.SkipReasons {
					output.Printf("  %-28s %d\n", reason, n)
				}
			}
			return nil
		},
	}
}

func newMonitorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Review open orders once",
		Long:  "Runs one 3-strike review pass over all open orders.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.build(); err != nil {
				return err
			}
			defer app.close()

			output := NewOutput(cmd)
			sum, err := app.Monitor.Run(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sum)
			}
			output.Printf("Reviewed %d orders (%d skipped): %d strikes, %d resets, %d cancelled\n",
				sum.Reviewed, sum.Skipped, sum.Strikes, sum.Resets, sum.Cancelled)
			return nil
		},
	}
}

func newInitPortfoliosCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init-portfolios",
		Short: "Create missing firm portfolios",
		Long:  "Creates the bankroll for every configured firm that does not have one. Existing portfolios are untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.build(); err != nil {
				return err
			}
			defer app.close()

			output := NewOutput(cmd)
			created, err := portfolio.Initialize(cmd.Context(), app.Store, app.Config.Firms, app.Config.Bankroll.InitialBalance, app.Logger)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"created": created})
			}
			output.Success("Created %d of %d portfolios", created, len(app.Config.Firms))
			return nil
		},
	}
}

func newLeaderboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the firm leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.build(); err != nil {
				return err
			}
			defer app.close()

			output := NewOutput(cmd)
			pfs, err := app.Store.ListPortfolios(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(pfs)
			}

			table := NewTable(output, "FIRM", "BALANCE", "RETURN", "WIN RATE", "BETS")
			for i := range pfs {
				pf := &pfs[i]
				table.AddRow(
					pf.FirmName,
					fmt.Sprintf("%.2f", pf.Balance),
					output.FormatPercent(pf.ReturnPct()),
					fmt.Sprintf("%.1f%%", pf.WinRate()),
					fmt.Sprintf("%d", pf.TotalBets),
				)
			}
			table.Render()
			return nil
		},
	}
}
