package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"outpost/pkg/api"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage tenant API keys (admin)",
	Long:  `Generate and revoke API keys for a tenant. These commands authenticate with the system secret, not a tenant API key.`,
}

var keyCreateCmd = &cobra.Command{
	Use:   "create [tenant_id]",
	Short: "Generate a new API key for a tenant",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")

		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		resp, err := client.CreateKey(args[0], api.CreateKeyRequest{Name: name})
		if err != nil {
			cmd.Printf("Error creating key: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("✓ Key created!\nKey ID:  %s\nAPI Key: %s\n", resp.KeyID, resp.APIKey)
		cmd.Println("Store the API key now. It will not be shown again.")
	},
}

var keyRevokeCmd = &cobra.Command{
	Use:   "revoke [tenant_id] [key_id]",
	Short: "Revoke an API key",
	Long:  `Revoke an API key. Requests using the key are denied immediately.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		if err := client.RevokeKey(args[0], args[1]); err != nil {
			cmd.Printf("Error revoking key: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("✓ Key %s revoked.\n", args[1])
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyCreateCmd)
	keyCmd.AddCommand(keyRevokeCmd)

	keyCreateCmd.Flags().StringP("name", "n", "default", "Key name")
}
