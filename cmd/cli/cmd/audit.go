package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the tenant's audit trail",
	Long:  `List recent audit entries for the authenticated tenant, newest first.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := client.GetAudit(limit)
		if err != nil {
			cmd.Printf("Error fetching audit trail: %s\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			cmd.Println("No audit entries found.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tACTION\tRESOURCE\tREQUEST ID")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339),
				e.Action,
				e.Resource,
				e.RequestID,
			)
		}
		w.Flush()
	},
}

func init() {
	auditCmd.Flags().IntP("limit", "l", 50, "Number of audit entries to list")

	rootCmd.AddCommand(auditCmd)
}
