package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/l2fabric/l2fabric/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.l2fabric/settings.json.

Settings provide defaults for context flags:
  - default_network: Used when -n is not specified
  - topology_path:    Used when -t is not specified
  - redis_addr:       Used when --redis is not specified

Examples:
  brokerctl settings show
  brokerctl settings set network Agg
  brokerctl settings set topology /etc/l2fabric/topology.yaml
  brokerctl settings clear`,
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

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, value)
		}

		printSetting("default_network", s.DefaultNetwork)
		printSetting("topology_path", s.TopologyPath)
		printSetting("redis_addr", s.RedisAddr)
		printSetting("audit_log_path", s.AuditLogPath)

		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  network   - Default network name (-n flag default)
  topology  - Topology file path (-t flag default)
  redis     - Persistence backend address (--redis flag default)

Examples:
  brokerctl settings set network Agg
  brokerctl settings set topology /etc/l2fabric/topology.yaml
  brokerctl settings set redis 10.0.0.1:6379`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]
		value := args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "network":
			s.DefaultNetwork = value
			fmt.Printf("Default network set to: %s\n", value)
		case "topology", "topology_path":
			s.TopologyPath = value
			fmt.Printf("Topology path set to: %s\n", value)
		case "redis", "redis_addr":
			s.RedisAddr = value
			fmt.Printf("Redis address set to: %s\n", value)
		default:
			return fmt.Errorf("unknown setting: %s (valid: network, topology, redis)", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}

		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]

		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		var value string
		switch setting {
		case "network":
			value = s.DefaultNetwork
		case "topology", "topology_path":
			value = s.TopologyPath
		case "redis", "redis_addr":
			value = s.RedisAddr
		default:
			return fmt.Errorf("unknown setting: %s", setting)
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
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
