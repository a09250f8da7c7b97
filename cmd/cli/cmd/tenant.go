package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"outpost/pkg/api"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants (admin)",
	Long:  `Create, inspect, and delete tenants. These commands authenticate with the system secret, not a tenant API key.`,
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new tenant",
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		email, _ := flags.GetString("email")

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		resp, err := client.CreateTenant(api.CreateTenantRequest{Name: name, Email: email})
		if err != nil {
			cmd.Printf("Error creating tenant: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("✓ Tenant created!\nTenant ID: %s\nAPI Key:   %s\n", resp.ID, resp.APIKey)
		cmd.Println("Store the API key now. It will not be shown again.")
	},
}

var tenantGetCmd = &cobra.Command{
	Use:   "get [tenant_id]",
	Short: "Show tenant details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		resp, err := client.GetTenant(args[0])
		if err != nil {
			cmd.Printf("Error fetching tenant: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("ID:      %s\nName:    %s\nEmail:   %s\nStatus:  %s\nCreated: %s\n",
			resp.ID, resp.Name, resp.Email, resp.Status, resp.CreatedAt.Format("Mon, 02 Jan 2006 15:04:05 MST"))
	},
}

var tenantDeleteCmd = &cobra.Command{
	Use:   "delete [tenant_id]",
	Short: "Soft-delete a tenant",
	Long:  `Mark a tenant as deleted. Its API keys stop authorizing immediately, but its records are retained.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"), viper.GetString("token"))

		if err := client.DeleteTenant(args[0]); err != nil {
			cmd.Printf("Error deleting tenant: %s\n", err)
			os.Exit(1)
		}

		cmd.Printf("✓ Tenant %s deleted.\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(tenantCmd)
	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantGetCmd)
	tenantCmd.AddCommand(tenantDeleteCmd)

	tenantCreateCmd.Flags().StringP("name", "n", "", "Tenant name (required)")
	tenantCreateCmd.Flags().StringP("email", "e", "", "Contact email")
}
