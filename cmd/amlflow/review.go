package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moneypennybank/amlflow/internal/analyzer"
	"github.com/moneypennybank/amlflow/internal/bankapi"
	"github.com/moneypennybank/amlflow/internal/ofx"
	"github.com/moneypennybank/amlflow/internal/pipeline"
	"github.com/moneypennybank/amlflow/internal/report"
	"github.com/moneypennybank/amlflow/internal/service"
	"github.com/moneypennybank/amlflow/internal/storage"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run an AML case review for an account",
		Long: `Run one case review: fetch the account's transactions and profile for the
period, analyze them for suspicious patterns and geographic risk, screen
flagged counterparties, and print the aggregated risk verdict.`,
		RunE: runReview,
	}

	cmd.Flags().StringP("account", "a", "", "Account number to review (required)")
	cmd.Flags().String("start", "", "Review period start (format: 2006-01-02)")
	cmd.Flags().String("end", "", "Review period end (format: 2006-01-02)")
	cmd.Flags().String("source", "api", "Transaction source (api, fixture, ofx)")
	cmd.Flags().String("fixture-file", "", "Fixture JSON file (required for --source fixture)")
	cmd.Flags().String("ofx-file", "", "OFX/QFX statement file (required for --source ofx)")
	cmd.Flags().Bool("force-entity-linkage", false, "Run entity linkage even without qualifying findings")
	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	cmd.Flags().Bool("save", false, "Persist the report to the audit store")
	cmd.Flags().Duration("stage-timeout", 30*time.Second, "Per-stage analysis timeout")

	_ = viper.BindPFlag("review.account", cmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("review.start", cmd.Flags().Lookup("start"))
	_ = viper.BindPFlag("review.end", cmd.Flags().Lookup("end"))
	_ = viper.BindPFlag("review.source", cmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("review.fixture_file", cmd.Flags().Lookup("fixture-file"))
	_ = viper.BindPFlag("review.ofx_file", cmd.Flags().Lookup("ofx-file"))
	_ = viper.BindPFlag("review.force_entity_linkage", cmd.Flags().Lookup("force-entity-linkage"))
	_ = viper.BindPFlag("review.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("review.save", cmd.Flags().Lookup("save"))
	_ = viper.BindPFlag("review.stage_timeout", cmd.Flags().Lookup("stage-timeout"))

	return cmd
}

// collaborators bundles every external dependency a review needs.
type collaborators struct {
	txns      service.TransactionFetcher
	profiles  service.ProfileFetcher
	rater     service.CountryRiskRater
	geocoder  service.Geocoder
	watchlist service.WatchlistChecker
	registry  service.RegistrySearcher
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	account := viper.GetString("review.account")
	if account == "" {
		return fmt.Errorf("--account is required")
	}
	start, err := time.Parse("2006-01-02", viper.GetString("review.start"))
	if err != nil {
		return fmt.Errorf("invalid --start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", viper.GetString("review.end"))
	if err != nil {
		return fmt.Errorf("invalid --end date: %w", err)
	}

	deps, err := buildCollaborators(ctx)
	if err != nil {
		return err
	}

	orchestrator := pipeline.New(pipeline.Deps{
		Transactions: deps.txns,
		Profiles:     deps.profiles,
		Pattern:      analyzer.NewPatternAnalyzer(analyzer.DefaultPatternConfig()),
		Geographic:   analyzer.NewGeographicAnalyzer(deps.rater, deps.geocoder),
		Entity:       analyzer.NewEntityLinkageAnalyzer(deps.watchlist, deps.registry),
	}, pipeline.Config{
		StageTimeout: viper.GetDuration("review.stage_timeout"),
	})

	req := pipeline.CaseRequest{
		AccountNumber:      account,
		Start:              start,
		End:                end,
		ForceEntityLinkage: viper.GetBool("review.force_entity_linkage"),
	}

	output := viper.GetString("review.output")
	if output == "text" {
		bar := newReviewProgressBar()
		req.Progress = func(phase pipeline.Phase, percent int) {
			bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", phase))
			_ = bar.Set(percent)
		}
	}

	rep, err := orchestrator.Review(ctx, req)
	if err != nil {
		return fmt.Errorf("case review failed: %w", err)
	}

	if viper.GetBool("review.save") {
		if err := saveReport(ctx, rep); err != nil {
			return err
		}
	}

	switch output {
	case "json":
		raw, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
	default:
		fmt.Println(report.Render(rep))
	}
	return nil
}

func buildCollaborators(ctx context.Context) (*collaborators, error) {
	fixturePath := viper.GetString("review.fixture_file")

	var fixture *bankapi.FixtureClient
	if fixturePath != "" {
		var err error
		fixture, err = bankapi.NewFixtureClient(fixturePath)
		if err != nil {
			return nil, err
		}
	}

	// Lookups come from the fixture when one is supplied, otherwise from
	// the bank API regardless of where transactions come from.
	deps := &collaborators{}
	if fixture != nil {
		deps.rater, deps.geocoder = fixture, fixture
		deps.watchlist, deps.registry = fixture, fixture
	} else {
		client, err := bankapi.NewClient(
			viper.GetString("api.base_url"),
			bankapi.WithAPIKey(viper.GetString("api.key")))
		if err != nil {
			return nil, err
		}
		deps.rater, deps.geocoder = client, client
		deps.watchlist, deps.registry = client, client
		deps.txns, deps.profiles = client, client
	}

	switch source := viper.GetString("review.source"); source {
	case "api":
		if deps.txns == nil {
			client, err := bankapi.NewClient(
				viper.GetString("api.base_url"),
				bankapi.WithAPIKey(viper.GetString("api.key")))
			if err != nil {
				return nil, err
			}
			deps.txns, deps.profiles = client, client
		}
	case "fixture":
		if fixture == nil {
			return nil, fmt.Errorf("--fixture-file is required with --source fixture")
		}
		deps.txns, deps.profiles = fixture, fixture
	case "ofx":
		path := viper.GetString("review.ofx_file")
		if path == "" {
			return nil, fmt.Errorf("--ofx-file is required with --source ofx")
		}
		statements, err := ofx.NewStatementSource(ctx, path)
		if err != nil {
			return nil, err
		}
		deps.txns, deps.profiles = statements, statements
	default:
		return nil, fmt.Errorf("unknown --source %q (want api, fixture, or ofx)", source)
	}

	return deps, nil
}

func saveReport(ctx context.Context, rep *report.CaseReport) error {
	store, err := storage.NewSQLiteStore(viper.GetString("storage.db_path"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if err := store.SaveReport(ctx, rep); err != nil {
		return err
	}
	slog.Info("Report saved", "case_id", rep.CaseID)
	return nil
}

func newReviewProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing case...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
