package cmd

import (
	"outpost/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new agent job",
	Long: `Submit a coding agent job for execution.

The job is stored immediately and picked up by a worker from the queue.

Example:
  outpostctl submit --agent claude --command "fix the failing tests"
  outpostctl submit --agent gemini --command "write a README" --priority high`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		agent, _ := flags.GetString("agent")
		command, _ := flags.GetString("command")
		priority, _ := flags.GetString("priority")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API key not found. Please set it using the --token flag or the OUTPOST_TOKEN environment variable")
			return
		}

		if agent == "" {
			cmd.Println("Error: --agent is required")
			return
		}

		if command == "" {
			cmd.Println("Error: --command is required")
			return
		}

		client := NewClient(url, token)

		result, err := client.SubmitJob(api.SubmitJobRequest{
			Agent:    agent,
			Command:  command,
			Priority: priority,
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Job submitted!\nJob ID: %s\nStatus: %s\n", result.JobID, result.Status)
		if result.QueueError != "" {
			cmd.Printf("Warning: %s\n", result.QueueError)
		}
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.StringP("agent", "a", "", "Agent to run: claude, codex, gemini, grok, aider (required)")
	flags.StringP("command", "c", "", "Instruction for the agent (required)")
	flags.StringP("priority", "p", "", "Job priority (optional)")

	rootCmd.AddCommand(submitCmd)
}
