package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/cli"
	"github.com/nfvpack/nfvpack/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.nfvpack/settings.json.

Settings provide defaults for flags:
  - default_author:          Created-By for pack (--author)
  - output_dir:              Directory for archives named without a path
  - catalog_addr:            Catalog Redis address (--catalog)
  - audit_log:               Audit log path
  - csar_version_constraint: Accepted CSAR-Version range, e.g. "~1.1"
  - listen_addr:             Address for serve (--listen)

Examples:
  nfvpack settings show
  nfvpack settings set default_author alice
  nfvpack settings set catalog_addr redis.lab:6379
  nfvpack settings set output_dir ""
  nfvpack settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE")
		for _, key := range settings.Keys() {
			value, _ := s.Get(key)
			if value == "" {
				value = cli.Dim("(not set)")
			}
			t.Row(key, value)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value. An empty value clears the setting.

Available settings: ` + strings.Join(settings.Keys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		if args[1] == "" {
			fmt.Printf("%s cleared\n", args[0])
		} else {
			fmt.Printf("%s set to: %s\n", args[0], args[1])
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		value, ok := s.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown setting: %s (valid: %s)", args[0], strings.Join(settings.Keys(), ", "))
		}
		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		s.Clear()
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsGetCmd, settingsClearCmd)
}
