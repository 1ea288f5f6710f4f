// brokerctl is a noun-group CLI for operating an l2fabric broker topology.
//
// Noun-group CLI Pattern:
//
//	brokerctl <network> <resource> <action> [args] [-x]
//
// The first argument is the target network name unless it matches a known
// command. Commands that don't need a network (settings, version) work
// without one.
//
// Examples:
//
//	brokerctl S1 terminal list                          # List terminals
//	brokerctl S1 terminal add a --interface eth0 -x
//	brokerctl Agg service request x:1,y:2 --up 100 --down 100 -x
//	brokerctl Agg service status 42
//	brokerctl settings show                             # No network needed
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l2fabric/l2fabric/pkg/agent"
	"github.com/l2fabric/l2fabric/pkg/fabric"
	"github.com/l2fabric/l2fabric/pkg/fabric/mockfabric"
	"github.com/l2fabric/l2fabric/pkg/labfab"
	"github.com/l2fabric/l2fabric/pkg/netcore"
	"github.com/l2fabric/l2fabric/pkg/persist"
	"github.com/l2fabric/l2fabric/pkg/settings"
	"github.com/l2fabric/l2fabric/pkg/topology"
	"github.com/l2fabric/l2fabric/pkg/util"

	"github.com/go-redis/redis/v8"
)

// App holds CLI state shared across all commands.
type App struct {
	// Context flags
	networkName string

	// Option flags
	topologyPath string
	redisAddr    string
	executeMode  bool
	verbose      bool
	jsonOutput   bool

	// Initialized state (set in PersistentPreRunE)
	settings *settings.Settings
	index    map[string]netcore.Network
	net      netcore.Network
	store    *persist.Store
}

var app = &App{}

func main() {
	// Implicit network name: if the first arg is not a known command or
	// flag, treat it as a network name. This lets users write:
	//   brokerctl S1 terminal list
	// instead of:
	//   brokerctl -n S1 terminal list
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") && !isKnownCommand(os.Args[1]) {
		os.Args = append([]string{os.Args[0], "-n", os.Args[1]}, os.Args[2:]...)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isKnownCommand(name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return true
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return true
			}
		}
	}
	return name == "help" || name == "completion"
}

var rootCmd = &cobra.Command{
	Use:               "brokerctl",
	Short:             "L2 circuit broker operator CLI",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `brokerctl is a noun-group CLI for operating an l2fabric broker topology.

Commands are organized by resource (terminal, service). Write
commands preview changes by default — use -x to execute.

  brokerctl <network> <resource> <action> [args] [-x]

The first argument is the network name unless it matches a known command.

  brokerctl S1 terminal list
  brokerctl Agg service request x:1,y:2 --up 100 --down 100 -x
  brokerctl settings show                          # no network needed`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		app.settings, err = settings.Load()
		if err != nil {
			util.Logger.Warnf("Could not load settings: %v", err)
			app.settings = &settings.Settings{}
		}

		if app.topologyPath == "" {
			app.topologyPath = app.settings.GetTopologyPath()
		}
		if app.redisAddr == "" {
			app.redisAddr = app.settings.GetRedisAddr()
		}
		if app.networkName == "" {
			app.networkName = app.settings.DefaultNetwork
		}

		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		root, err := topology.Load(app.topologyPath)
		if err != nil {
			return fmt.Errorf("loading topology %s: %w", app.topologyPath, err)
		}

		registry := newRegistry()
		net, index, err := registry.BuildIndex(root)
		if err != nil {
			return fmt.Errorf("building network tree: %w", err)
		}
		app.index = index

		if app.networkName != "" {
			target, ok := index[app.networkName]
			if !ok {
				return fmt.Errorf("unknown network: %s", app.networkName)
			}
			app.net = target
		} else {
			app.net = net
		}

		client := redis.NewClient(&redis.Options{Addr: app.redisAddr})
		app.store = persist.NewStore(client, app.net.Name())

		return nil
	},
}

// newRegistry returns a fabric registry with every driver brokerctl knows
// how to build from a topology file: "mock" for local testing without real
// switches, and "lab" for a containerlab-style Open vSwitch lab fabric.
func newRegistry() *agent.Registry {
	r := agent.NewRegistry()
	r.RegisterFabric("mock", func(params map[string]string) (fabric.Driver, error) {
		return mockfabric.New(), nil
	})
	r.RegisterFabric("lab", func(params map[string]string) (fabric.Driver, error) {
		cfg := labfab.Config{
			Host:         params["host"],
			User:         params["user"],
			Pass:         params["pass"],
			BridgePrefix: params["bridge_prefix"],
		}
		return labfab.Dial(cfg)
	})
	return r
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.networkName, "network", "n", "", "Target network (switch or aggregator)")
	rootCmd.PersistentFlags().StringVarP(&app.topologyPath, "topology", "t", "", "Topology file path")
	rootCmd.PersistentFlags().StringVar(&app.redisAddr, "redis", "", "Persistence backend address")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{terminalCmd, serviceCmd} {
		addWriteFlags(cmd)
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "resource", Title: "Resource Commands:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{terminalCmd, serviceCmd} {
		cmd.GroupID = "resource"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(shellCmd)
}

func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

func addWriteFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVarP(&app.executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
}

func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&app.jsonOutput, "json", false, "JSON output")
}

func printDryRunNotice() {
	if !app.executeMode {
		fmt.Println("\n" + yellow("DRY-RUN: No changes applied. Use -x to execute."))
	}
}
