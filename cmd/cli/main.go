package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-star-monitor/internal/aggregator"
	"github.com/kurihiro0119/github-star-monitor/internal/app"
	"github.com/kurihiro0119/github-star-monitor/internal/clock"
	"github.com/kurihiro0119/github-star-monitor/internal/config"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	"github.com/kurihiro0119/github-star-monitor/internal/shutdown"
	"github.com/kurihiro0119/github-star-monitor/internal/state"
	"github.com/kurihiro0119/github-star-monitor/pkg/client"
)

var version = "dev"

var (
	envFile    string
	outputJSON bool
	endpoint   string
)

var rootCmd = &cobra.Command{
	Use:   "star-monitor",
	Short: "GitHub stargazer monitor",
	Long: `A CLI tool for watching who stars and unstars a GitHub repository.

The monitor keeps a snapshot of the stargazer list on disk, compares it with
GitHub on every interval and reports each new and removed stargazer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [owner/repo]",
	Short: "Watch a repository for stargazer changes",
	Long:  `Run the monitor loop until interrupted. Flags override environment configuration.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

var showCmd = &cobra.Command{
	Use:   "show [owner/repo]",
	Short: "Show the saved stargazer snapshot",
	Long:  `Display the stargazers recorded in the local state file.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var trendCmd = &cobra.Command{
	Use:   "trend [owner/repo]",
	Short: "Show gained and lost stars over time",
	Long:  `Display daily or hourly star changes from the event archive (STORAGE_TYPE sqlite or postgres).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTrend,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent star events from a running monitor",
	Args:  cobra.NoArgs,
	RunE:  runActivity,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export snapshot, stats and activity from a running monitor",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running monitor",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "monitor API endpoint (default is API_ENDPOINT)")

	watchCmd.Flags().Duration("interval", 0, "check interval")
	watchCmd.Flags().String("state-file", "", "snapshot file path")
	watchCmd.Flags().Int("drift-tolerance", 0, "star count drift accepted when resuming from the snapshot")
	watchCmd.Flags().String("storage", "", "event archive (none, sqlite, postgres)")
	watchCmd.Flags().Bool("serve", false, "also serve the HTTP API")

	showCmd.Flags().String("state-file", "", "snapshot file path")

	trendCmd.Flags().Int("days", 7, "number of days")
	trendCmd.Flags().Int("hours", 0, "number of hours; switches to an hourly series")

	activityCmd.Flags().Int("limit", 20, "maximum number of events")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the environment configuration; a positional owner/repo overrides GITHUB_REPO
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if len(args) == 1 {
		cfg.Repo = args[0]
	}
	if _, _, err := config.ParseRepo(cfg.Repo); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient() (*client.Client, error) {
	if endpoint != "" {
		return client.NewClient(endpoint), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return client.NewClient(cfg.APIEndpoint), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.CheckInterval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("state-file") {
		cfg.StateFile, _ = flags.GetString("state-file")
	}
	if flags.Changed("drift-tolerance") {
		cfg.DriftTolerance, _ = flags.GetInt("drift-tolerance")
	}
	if flags.Changed("storage") {
		cfg.StorageType, _ = flags.GetString("storage")
	}
	if flags.Changed("serve") {
		cfg.APIEnabled, _ = flags.GetBool("serve")
	}

	logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctrl := shutdown.New(logger)
	stop := ctrl.Listen()
	defer stop()

	ctx, cancel := ctrl.Context(cmd.Context())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s every %s (state: %s)\n", cfg.Repo, cfg.CheckInterval, cfg.StatePath())
	return a.Run(ctx)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("state-file"); path != "" {
		cfg.StateFile = path
	}

	logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	store := state.NewFileStore(cfg.StatePath(), cfg.Repo, clock.Real(), logger)
	snap, ok := store.Load()
	if !ok {
		return fmt.Errorf("no usable snapshot for %s at %s", cfg.Repo, store.Path())
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), domain.Summarize(snap))
	}
	renderSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func runTrend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	days, _ := cmd.Flags().GetInt("days")
	hours, _ := cmd.Flags().GetInt("hours")

	ctx := cmd.Context()
	archive, err := app.OpenArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if archive == nil {
		return fmt.Errorf("trend requires an event archive; set STORAGE_TYPE to sqlite or postgres")
	}
	defer archive.Close()

	clk := clock.Real()
	now := clk.Now()
	since := trendStart(now, days, hours)

	events, err := archive.GetEvents(ctx, cfg.Repo, since, now)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	counts, err := archive.CountEvents(ctx, cfg.Repo, since, now)
	if err != nil {
		return fmt.Errorf("failed to count events: %w", err)
	}

	stats := aggregator.NewStats(clk, nil)
	stats.Restore(events)

	var trend *domain.Trend
	if hours > 0 {
		trend, err = stats.HourlyTrend(hours)
	} else {
		trend, err = stats.Trend(days)
	}
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), trend)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nStar Trend: %s\n\n", cfg.Repo)
	renderTrend(cmd.OutOrStdout(), trend, counts)
	return nil
}

// trendStart returns the start of the oldest period in the window
func trendStart(now time.Time, days, hours int) time.Time {
	if hours > 0 {
		top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
		return top.Add(-time.Duration(hours-1) * time.Hour)
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -(days - 1))
}

func runActivity(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	events, err := c.GetActivity(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to get activity: %w", err)
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), events)
	}
	renderActivity(cmd.OutOrStdout(), events)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	export, err := c.GetExport(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return writeJSON(cmd.OutOrStdout(), export)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := writeJSON(f, export); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d stargazers and %d events to %s\n",
		len(export.Snapshot.Members), len(export.Activity), output)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.HealthCheck(cmd.Context()); err != nil {
		return fmt.Errorf("monitor API is not healthy: %w", err)
	}

	status, err := c.GetStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), status)
	}
	renderStatus(cmd.OutOrStdout(), status)
	return nil
}
