package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"signalist/internal/alert"
	"signalist/internal/model"
	"signalist/internal/notifier"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the pattern, realtime and alert loops until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Println("[INFO] Signalist starting...")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.stream != nil {
			go a.stream.Run(ctx)
			log.Println("[INFO] trade stream started")
		}

		s := a.sched
		if err := s.RegisterAll(a.cfg.Schedule.PatternCron, a.cfg.Schedule.RealtimeCron, a.cfg.Schedule.AlertCron); err != nil {
			return fmt.Errorf("register cron tasks: %w", err)
		}
		s.Start()
		defer s.Stop()

		if a.telegram != nil && a.cfg.Telegram.Polling {
			go a.telegram.StartPolling(ctx, s.HandleCommand)
			log.Println("[INFO] Telegram polling started")
		}

		if os.Getenv("RUN_ON_START") == "true" {
			log.Println("[INFO] RUN_ON_START enabled, executing pattern scan now")
			go s.RunPatternsNow(ctx)
		}

		log.Println("[INFO] Signalist is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("[INFO] shutdown signal received, stopping...")
		cancel()
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Detect candlestick patterns on the latest daily bars of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.sched.AnalyzeNow(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", res.Symbol, res.At.Format("2006-01-02 15:04"))
		for _, m := range res.Matches {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %-8s %.2f  %-6s %-4s  %s\n",
				m.Name, m.Direction, m.Confidence, m.Significance, m.Action, m.Description)
		}
		s := res.Summary
		fmt.Fprintf(cmd.OutOrStdout(), "sentiment %s (%.2f): %d bullish, %d bearish, %d neutral\n",
			s.Sentiment, s.Confidence, s.Bullish, s.Bearish, s.Neutral)
		return nil
	},
}

var (
	alertUser    string
	alertCompany string
	alertMethod  string
	alertAll     bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate and manage price alerts",
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one alert sweep and notify owners of triggered alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		triggered := a.sched.RunAlertsNow(cmd.Context())
		for _, t := range triggered {
			fmt.Fprintf(cmd.OutOrStdout(), "triggered %s %s %s %s at %s\n",
				t.Alert.ID, t.Alert.Symbol, t.Alert.Direction, t.Alert.TargetPrice, t.Price)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d alerts triggered\n", len(triggered))
		return nil
	},
}

var alertsAddCmd = &cobra.Command{
	Use:   "add SYMBOL above|below PRICE",
	Short: "Create a price alert",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", args[2], err)
		}
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.alerts.Create(cmd.Context(), alert.CreateRequest{
			UserID:      alertUser,
			Symbol:      args[0],
			Company:     alertCompany,
			Direction:   model.AlertDirection(args[1]),
			TargetPrice: price,
			Method:      model.NotificationMethod(alertMethod),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s: %s %s %s (current %s)\n",
			rec.ID, rec.Symbol, rec.Direction, rec.TargetPrice, rec.LastKnownPrice)
		return nil
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's alerts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		alerts, err := a.alerts.List(cmd.Context(), alertUser, !alertAll)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), notifier.FormatAlertList(alerts))
		return nil
	},
}

var alertsToggleCmd = &cobra.Command{
	Use:   "toggle ID",
	Short: "Activate or deactivate an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		active, err := a.alerts.Toggle(cmd.Context(), args[0], alertUser)
		if err != nil {
			return err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alert %s %s\n", args[0], state)
		return nil
	},
}

var alertsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.alerts.Delete(cmd.Context(), args[0], alertUser); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alert %s deleted\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{alertsAddCmd, alertsListCmd, alertsToggleCmd, alertsDeleteCmd} {
		c.Flags().StringVarP(&alertUser, "user", "u", "", "owning user id")
		c.MarkFlagRequired("user")
	}
	alertsAddCmd.Flags().StringVar(&alertCompany, "company", "", "company name (defaults to the symbol)")
	alertsAddCmd.Flags().StringVarP(&alertMethod, "method", "m", "email", "notification method: email, push or both")
	alertsListCmd.Flags().BoolVarP(&alertAll, "all", "a", false, "include inactive and triggered alerts")

	alertsCmd.AddCommand(alertsCheckCmd, alertsAddCmd, alertsListCmd, alertsToggleCmd, alertsDeleteCmd)
}
