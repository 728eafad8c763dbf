package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moneypennybank/amlflow/internal/report"
	"github.com/moneypennybank/amlflow/internal/storage"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse stored case reports",
	}
	cmd.AddCommand(reportsListCmd())
	cmd.AddCommand(reportsShowCmd())
	return cmd
}

func reportsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored case reports, newest first",
		RunE:  runReportsList,
	}

	cmd.Flags().StringP("account", "a", "", "Only show reports for this account")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of reports to show (0 for all)")

	_ = viper.BindPFlag("reports.account", cmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("reports.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStore) error {
		items, err := store.ListReports(ctx,
			viper.GetString("reports.account"),
			viper.GetInt("reports.limit"))
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No stored reports.")
			return nil
		}

		fmt.Printf("%-38s %-12s %-10s %-9s %s\n", "CASE", "ACCOUNT", "RISK", "FINDINGS", "GENERATED")
		for _, item := range items {
			fmt.Printf("%-38s %-12s %-10s %-9d %s\n",
				item.CaseID,
				item.AccountNumber,
				item.OverallRisk,
				item.FindingCount,
				item.GeneratedAt.Format("2006-01-02 15:04"))
		}
		return nil
	})
}

func reportsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show one stored case report",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportsShow,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	_ = viper.BindPFlag("reports.output", cmd.Flags().Lookup("output"))

	return cmd
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, store *storage.SQLiteStore) error {
		rep, err := store.GetReport(ctx, args[0])
		if err != nil {
			return err
		}

		if viper.GetString("reports.output") == "json" {
			raw, err := rep.JSON()
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		}
		fmt.Println(report.Render(rep))
		return nil
	})
}

func withStore(ctx context.Context, fn func(context.Context, *storage.SQLiteStore) error) error {
	store, err := storage.NewSQLiteStore(viper.GetString("storage.db_path"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return fn(ctx, store)
}
