package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guiqiqi/itmo-moodle-agent/config"
	"github.com/guiqiqi/itmo-moodle-agent/internal/app"
	"github.com/guiqiqi/itmo-moodle-agent/version"
)

const serviceName = "agent"

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "agent",
		Short:        "ITMO Moodle agent",
		Long:         `Serves the account and task API and runs administrative tasks against its database.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: search ./cmd/agent, ./config, .)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewGroupCmd())
	cmd.AddCommand(NewSessionCmd())
	return cmd
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	agent, err := app.NewServer(cfg)
	if err != nil {
		return err
	}
	return agent.Run(cmd.Context())
}

func loadConfig() (*app.Config, error) {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}

	cfg := &app.Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "itmo-moodle-agent"
	}
	if cfg.Version == "" {
		cfg.Version = version.Version
	}
	return cfg, nil
}
