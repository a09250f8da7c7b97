package cmd

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a pending job",
	Long:  `Cancel a job that has not started executing yet. Jobs that are already running or finished cannot be cancelled.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		resp, err := client.CancelJob(jobID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusConflict {
				cmd.Printf("Job %s is not cancellable (already started or finished).\n", jobID)
			} else {
				cmd.Printf("Error cancelling job: %s\n", err)
			}
			os.Exit(1)
		}

		cmd.Printf("✓ Job %s cancelled (status: %s).\n", resp.JobID, resp.Status)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
