package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"outpost/pkg/api"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long:  `Retrieve detailed status information for a job, including its current state (pending, running, success, failed, cancelled), error message, and timestamps.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API key not found. Please set it using the --token flag or the OUTPOST_TOKEN environment variable")
			return
		}

		client := NewClient(url, token)

		job, err := client.GetJob(jobID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		printStatus(cmd, *job)
	},
}

func printStatus(cmd *cobra.Command, job api.JobResponse) {
	// Header with status icon
	icon := statusIcon(job.Status)
	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, job.JobID)
	cmd.Printf("%sAgent:%s       %s\n", colorDim, colorReset, job.Agent)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(job.Status))

	if job.Priority != "" {
		cmd.Printf("%sPriority:%s    %s\n", colorDim, colorReset, job.Priority)
	}

	if job.ErrorMessage != nil {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, *job.ErrorMessage, colorReset)
	}

	if job.OutputLocation != nil {
		cmd.Printf("%sOutput:%s      %s\n", colorDim, colorReset, *job.OutputLocation)
	}

	cmd.Printf("%sSubmitted:%s   %s\n", colorDim, colorReset, formatTimeWithRelative(&job.CreatedAt))
	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(job.StartedAt))

	// Duration if both times available
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration := job.CompletedAt.Sub(*job.StartedAt)
		cmd.Printf("%sFinished:%s    %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(job.CompletedAt),
			colorCyan, formatDuration(duration), colorReset)
	} else {
		cmd.Printf("%sFinished:%s    %s\n", colorDim, colorReset, formatTimeWithRelative(job.CompletedAt))
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "success":
		return colorGreen + "✓" + colorReset
	case "failed":
		return colorRed + "✗" + colorReset
	case "running":
		return colorYellow + "⏳" + colorReset
	case "pending":
		return colorCyan + "◯" + colorReset
	case "cancelled":
		return colorDim + "⊘" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "success":
		return icon + " " + colorGreen + status + colorReset
	case "failed":
		return icon + " " + colorRed + status + colorReset
	case "running":
		return icon + " " + colorYellow + status + colorReset
	case "pending":
		return icon + " " + colorCyan + status + colorReset
	default:
		return icon + " " + status
	}
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil {
		return "-"
	}
	relative := relativeTime(*t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
