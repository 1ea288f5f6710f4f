package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/termfmt"
)

var (
	terminalInterface  string
	terminalSubnetwork string
	terminalSubterm    string
)

var terminalCmd = &cobra.Command{
	Use:     "terminal",
	Aliases: []string{"term"},
	Short:   "Manage network terminals",
	Long: `Manage terminals on the target network.

A switch terminal is backed by a fabric interface; an aggregator terminal
aliases a terminal on one of its inferior networks.

Examples:
  brokerctl S1 terminal list
  brokerctl S1 terminal add a --interface eth0 -x
  brokerctl Agg terminal add x --subnetwork S1 --subterm a -x
  brokerctl S1 terminal remove a -x`,
}

var terminalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List terminals",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := app.net.ListTerminals()

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(names)
		}

		if len(names) == 0 {
			fmt.Println("No terminals defined")
			return nil
		}

		t := termfmt.NewTable("NAME", "BACKING", "DETAIL", "TRUNK")
		for _, name := range names {
			term, err := app.net.GetTerminal(name)
			if err != nil {
				continue
			}
			t.Row(name, term.Backing.String(), terminalDetail(term), dash(term.InTrunk))
		}
		t.Flush()
		return nil
	},
}

func terminalDetail(t *model.Terminal) string {
	if t.Backing == model.BackingSubnetwork {
		return t.SubnetworkName + "/" + t.SubterminalName
	}
	return t.FabricInterface
}

var terminalShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show terminal details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term, err := app.net.GetTerminal(args[0])
		if err != nil {
			return err
		}
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(term)
		}
		fmt.Printf("Terminal: %s\n", bold(term.Name))
		fmt.Printf("Backing:  %s\n", term.Backing)
		fmt.Printf("Detail:   %s\n", terminalDetail(term))
		if term.InTrunk != "" {
			fmt.Printf("Trunk:    %s\n", term.InTrunk)
		}
		return nil
	},
}

var terminalAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		var backing model.Backing
		var descriptor string
		switch {
		case terminalInterface != "":
			backing = model.BackingFabric
			descriptor = terminalInterface
		case terminalSubnetwork != "" && terminalSubterm != "":
			backing = model.BackingSubnetwork
			descriptor = terminalSubnetwork + "/" + terminalSubterm
		default:
			return fmt.Errorf("terminal add: specify --interface (switch) or --subnetwork/--subterm (aggregator)")
		}

		fmt.Printf("Preview: add terminal %s (%s, %s) to %s\n", name, backing, descriptor, app.net.Name())

		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := app.net.AddTerminal(name, backing, descriptor); err != nil {
			return fmt.Errorf("adding terminal: %w", err)
		}

		ctx := context.Background()
		term, err := app.net.GetTerminal(name)
		if err == nil {
			if perr := app.store.SaveTerminal(ctx, term); perr != nil {
				return fmt.Errorf("terminal added but persisting failed: %w", perr)
			}
		}

		fmt.Println(green("Terminal added."))
		return nil
	},
}

var terminalRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		fmt.Printf("Preview: remove terminal %s from %s\n", name, app.net.Name())

		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := app.net.RemoveTerminal(name); err != nil {
			return fmt.Errorf("removing terminal: %w", err)
		}

		if err := app.store.DeleteTerminal(context.Background(), name); err != nil {
			return fmt.Errorf("terminal removed but persisting failed: %w", err)
		}

		fmt.Println(green("Terminal removed."))
		return nil
	},
}

func init() {
	terminalAddCmd.Flags().StringVar(&terminalInterface, "interface", "", "Fabric interface (switch terminal)")
	terminalAddCmd.Flags().StringVar(&terminalSubnetwork, "subnetwork", "", "Inferior network name (aggregator terminal)")
	terminalAddCmd.Flags().StringVar(&terminalSubterm, "subterm", "", "Inferior terminal name (aggregator terminal)")

	terminalCmd.AddCommand(terminalListCmd)
	terminalCmd.AddCommand(terminalShowCmd)
	terminalCmd.AddCommand(terminalAddCmd)
	terminalCmd.AddCommand(terminalRemoveCmd)
}
