package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "outpostctl",
	Short: "Outpostctl is a command line tool for interacting with the outpost platform",
	Long: `outpostctl is the command-line interface for the Outpost agent job platform.

Outpost provides a multi-tenant platform for submitting coding agent jobs and
tracking them through their lifecycle. The architecture follows a clear
control plane / data plane separation:

  - Control Plane: Stateless HTTP API for job submission and lifecycle
  - Data Plane: Workers that pull jobs from the queue and execute agents

Common workflows:

  Submit a job:
    outpostctl submit --agent claude --command "fix the failing tests"

  Check job status:
    outpostctl status <job-id>

  List recent jobs:
    outpostctl list --limit 20

  Cancel a pending job:
    outpostctl cancel <job-id>

  View the audit trail:
    outpostctl audit --limit 50

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    OUTPOST_URL      API endpoint (default: http://localhost:6161)
    OUTPOST_TOKEN    Tenant API key for authentication

Admin commands (tenant, key) authenticate with the system secret instead of a
tenant API key. Pass it via --token or OUTPOST_TOKEN.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".outpostctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".outpostctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "OUTPOST_VARNAME"
	viper.SetEnvPrefix("OUTPOST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.outpostctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "Outpost Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "API key for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
