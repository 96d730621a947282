package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/track"
)

// JobsCmd groups job inspection and management commands.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage tracked jobs",
	Long: `Inspect and manage tracked prediction jobs.

Job management commands:
  genefold jobs ls               # List jobs
  genefold jobs status <id>      # Show job details
  genefold jobs cancel <id>      # Cancel a job
  genefold jobs result <id>      # Locate a completed job's artifact
  genefold jobs archive <id>     # Remove a finished job`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tracked jobs",
	Long: `List tracked jobs, newest first, optionally filtered by status.

Status filters: queued, submitting, polling, downloading, completed,
failed, cancelled.

Examples:
  genefold jobs ls
  genefold jobs ls --status polling
  genefold jobs ls --limit 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsLs(statusFilter, limit)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show details of a tracked job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus(args[0])
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a tracked job",
	Long: `Cancel a tracked job. A queued job is cancelled immediately. A job the
daemon is driving is cancelled over the websocket; cancelling it from here
marks the record cancelled and the daemon's session stops at its next
persistence attempt, which may be after one more portal interaction.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsCancel(args[0])
	},
}

var jobsResultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Locate a completed job's result artifact",
	Long: `Print the path of a completed job's downloaded result artifact,
or copy it to a destination with --out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return runJobsResult(args[0], out)
	},
}

var jobsArchiveCmd = &cobra.Command{
	Use:   "archive <job-id>",
	Short: "Remove a finished job from the registry",
	Long: `Remove a completed, failed, or cancelled job from the registry.
Active jobs must be cancelled first; a job is never destroyed implicitly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsArchive(args[0])
	},
}

var jobsDBPath string

func init() {
	JobsCmd.PersistentFlags().StringVar(&jobsDBPath, "db-path", "", "Custom database path (overrides config)")
	jobsLsCmd.Flags().String("status", "", "Filter by status")
	jobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")
	jobsResultCmd.Flags().String("out", "", "Copy the artifact to this path")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsStatusCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
	JobsCmd.AddCommand(jobsResultCmd)
	JobsCmd.AddCommand(jobsArchiveCmd)
}

// openTracker opens the job database and wraps it in a tracker. The caller
// must call the returned closer.
func openTracker() (*track.Tracker, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	database, err := openDatabase(cfg, jobsDBPath)
	if err != nil {
		return nil, nil, err
	}
	return track.NewTracker(database), database.Close, nil
}

func runJobsLs(statusFilter string, limit int) error {
	tracker, closer, err := openTracker()
	if err != nil {
		return err
	}
	defer closer()

	var status *track.Status
	if statusFilter != "" {
		if !track.IsValidStatus(statusFilter) {
			return errors.Wrapf(errors.ErrValidation, "unknown status %q", statusFilter)
		}
		s := track.Status(statusFilter)
		status = &s
	}

	jobs, err := tracker.List(status, limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-36s %-12s %-18s %-15s %-20s %s\n",
		"JOB ID", "STATUS", "PHASE", "EXTERNAL ID", "NAME", "CREATED")
	for _, job := range jobs {
		fmt.Printf("%-36s %-12s %-18s %-15s %-20s %s\n",
			job.ID,
			job.Status,
			truncate(job.Phase, 18),
			truncate(job.ExternalID, 15),
			truncate(job.Name, 20),
			job.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobsStatus(jobID string) error {
	tracker, closer, err := openTracker()
	if err != nil {
		return err
	}
	defer closer()

	job, err := tracker.Get(jobID)
	if err != nil {
		return err
	}

	fmt.Printf("Job ID:      %s\n", job.ID)
	fmt.Printf("Handler:     %s\n", job.HandlerName)
	fmt.Printf("Name:        %s\n", job.Name)
	fmt.Printf("Source:      %s\n", job.Source)
	fmt.Printf("Status:      %s\n", job.Status)
	if job.Phase != "" {
		fmt.Printf("Phase:       %s\n", job.Phase)
	}
	if job.ExternalID != "" {
		fmt.Printf("External ID: %s\n", job.ExternalID)
	}
	if job.ResultPath != "" {
		fmt.Printf("Result:      %s\n", job.ResultPath)
	}
	if job.Error != "" {
		fmt.Printf("Error:       %s\n", job.Error)
	}
	fmt.Println()

	fmt.Printf("Created:     %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.SubmittedAt != nil {
		fmt.Printf("Submitted:   %s\n", job.SubmittedAt.Format("2006-01-02 15:04:05"))
	}
	if job.LastPolledAt != nil {
		fmt.Printf("Last polled: %s\n", job.LastPolledAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsCancel(jobID string) error {
	tracker, closer, err := openTracker()
	if err != nil {
		return err
	}
	defer closer()

	if err := tracker.Cancel(jobID); err != nil {
		return err
	}
	fmt.Printf("Cancellation requested for job %s\n", jobID)
	return nil
}

func runJobsResult(jobID, out string) error {
	tracker, closer, err := openTracker()
	if err != nil {
		return err
	}
	defer closer()

	job, err := tracker.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status != track.StatusCompleted {
		return errors.Wrapf(errors.ErrValidation, "job %s is %s, not completed", jobID, job.Status)
	}
	if job.ResultPath == "" {
		return errors.Wrapf(errors.ErrNotFound, "job %s has no recorded result artifact", jobID)
	}
	info, err := os.Stat(job.ResultPath)
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "result artifact missing at %s", job.ResultPath)
	}
	if info.Size() == 0 {
		return errors.Wrapf(errors.ErrDownload, "result artifact at %s is empty", job.ResultPath)
	}

	if out == "" {
		fmt.Println(job.ResultPath)
		return nil
	}
	data, err := os.ReadFile(job.ResultPath)
	if err != nil {
		return errors.Wrap(err, "failed to read result artifact")
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write result copy")
	}
	fmt.Printf("Copied result of job %s to %s\n", jobID, out)
	return nil
}

func runJobsArchive(jobID string) error {
	tracker, closer, err := openTracker()
	if err != nil {
		return err
	}
	defer closer()

	if err := tracker.Archive(jobID); err != nil {
		return err
	}
	fmt.Printf("Job %s archived\n", jobID)
	return nil
}
