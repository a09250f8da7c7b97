package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tenant's most recent jobs",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := client.ListJobs(limit)
		if err != nil {
			cmd.Printf("Error fetching jobs: %s\n", err)
			os.Exit(1)
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs found.")
			return
		}

		// Print table
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tAGENT\tSTATUS\tSUBMITTED\tERROR")
		for _, j := range jobs {
			errMsg := ""
			if j.ErrorMessage != nil {
				// Truncate long error messages for the table view
				errMsg = *j.ErrorMessage
				if len(errMsg) > 50 {
					errMsg = errMsg[:47] + "..."
				}
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				j.JobID,
				j.Agent,
				j.Status,
				j.CreatedAt.Format(time.RFC3339),
				errMsg,
			)
		}
		w.Flush()
	},
}

func init() {
	listCmd.Flags().IntP("limit", "l", 20, "Number of jobs to list")

	rootCmd.AddCommand(listCmd)
}
