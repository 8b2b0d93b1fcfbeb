package main

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/qrtctl/internal/config"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "qrtctl.toml"

func configCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, check and print configuration",
	}
	cmd.AddCommand(configInitCmd(), configValidateCmd(opts), configShowCmd(opts))
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented config template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", kindLabel(kind), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "client", "template kind: client|stream")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a config file without connecting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config file given (pass a path or --config)")
			}
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated config at %s\n", path)
			return nil
		},
	}
}

// configShowCmd prints the effective config after file and flag overrides.
func configShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(opts.cfg)
		},
	}
}

func kindLabel(kind string) string {
	if kind == "" {
		return "client"
	}
	return kind
}
