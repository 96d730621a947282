package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/track"
)

// DbCmd groups job database operations.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the job database",
	Long: `Manage the job database.

Examples:
  genefold db migrate              # Apply pending schema migrations
  genefold db stats                # Show job counts by status
  genefold db cleanup --days 30    # Remove terminal jobs older than 30 days`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	RunE:  runDbStats,
}

var dbCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old finished jobs",
	Long:  "Remove completed, failed, and cancelled jobs older than the given age.",
	RunE:  runDbCleanup,
}

var (
	dbPathFlag     string
	cleanupDaysArg int
)

func init() {
	DbCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "Custom database path (overrides config)")
	dbCleanupCmd.Flags().IntVar(&cleanupDaysArg, "days", 30, "Remove terminal jobs older than this many days")

	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbCleanupCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// openDatabase migrates as part of opening.
	database, err := openDatabase(cfg, dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Println("Database schema is up to date")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	database, err := openDatabase(cfg, dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := track.NewTracker(database).Stats()
	if err != nil {
		return err
	}

	path := cfg.Database.Path
	if dbPathFlag != "" {
		path = dbPathFlag
	}
	fmt.Printf("Database: %s\n\n", path)

	total := 0
	order := []track.Status{
		track.StatusQueued, track.StatusSubmitting, track.StatusPolling,
		track.StatusDownloading, track.StatusCompleted, track.StatusFailed,
		track.StatusCancelled,
	}
	for _, status := range order {
		fmt.Printf("%-12s %d\n", status, stats[status])
		total += stats[status]
	}
	fmt.Printf("\nTotal: %d job(s)\n", total)
	return nil
}

func runDbCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	database, err := openDatabase(cfg, dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	removed, err := track.NewTracker(database).Cleanup(time.Duration(cleanupDaysArg) * 24 * time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d job(s) older than %d day(s)\n", removed, cleanupDaysArg)
	return nil
}
