package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/netcore"
	"github.com/l2fabric/l2fabric/pkg/termfmt"
)

var (
	serviceUp   uint64
	serviceDown uint64
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage circuit services",
	Long: `Manage the point-to-multipoint circuit services of the target network.

Examples:
  brokerctl Agg service list
  brokerctl Agg service request x:1,y:2 --up 100 --down 100 -x
  brokerctl Agg service activate 42 -x
  brokerctl Agg service release 42 -x
  brokerctl Agg service status 42`,
}

var serviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List services on the target network",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := app.net.ListServices()

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(ids)
		}

		if len(ids) == 0 {
			fmt.Println("No services")
			return nil
		}

		t := termfmt.NewTable("ID", "STATE", "ENDPOINTS")
		for _, id := range ids {
			svc, err := app.net.AwaitService(id)
			if err != nil {
				continue
			}
			t.Row(strconv.Itoa(id), termfmt.StateColor(svc.State), describeEndpoints(svc))
		}
		t.Flush()
		return nil
	},
}

func describeEndpoints(svc *model.Service) string {
	parts := make([]string, 0, len(svc.Request.Endpoints))
	for _, ep := range svc.Request.Endpoints {
		parts = append(parts, fmt.Sprintf("%s:%d", ep.Terminal, ep.Label))
	}
	return strings.Join(parts, ", ")
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a service's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid service id: %s", args[0])
		}
		state, err := app.net.Status(id)
		if err != nil {
			return err
		}
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]string{"id": args[0], "state": state.String()})
		}
		fmt.Printf("Service %d: %s\n", id, termfmt.StateColor(state))
		return nil
	},
}

var serviceShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show full service details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid service id: %s", args[0])
		}
		svc, err := app.net.AwaitService(id)
		if err != nil {
			return err
		}
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(svc)
		}
		fmt.Printf("Service:   %d\n", svc.ID)
		fmt.Printf("Network:   %s\n", svc.Network)
		fmt.Printf("State:     %s\n", termfmt.StateColor(svc.State))
		fmt.Printf("Endpoints: %s\n", describeEndpoints(svc))
		fmt.Printf("Bandwidth: up=%d down=%d\n", svc.Request.Bandwidth.Upstream, svc.Request.Bandwidth.Downstream)
		if len(svc.Reservations) > 0 {
			fmt.Println("Reservations:")
			for _, r := range svc.Reservations {
				fmt.Printf("  trunk=%s labelA=%d labelB=%d up=%d down=%d\n",
					r.TrunkID, r.LabelA, r.LabelB, r.Bandwidth.Upstream, r.Bandwidth.Downstream)
			}
		}
		if len(svc.SubServiceIDs) > 0 {
			fmt.Println("Sub-services:")
			for net, subID := range svc.SubServiceIDs {
				fmt.Printf("  %s -> %d\n", net, subID)
			}
		}
		return nil
	},
}

var serviceRequestCmd = &cobra.Command{
	Use:   "request <endpoint:label,...>",
	Short: "Create and initiate a new service",
	Long: `Create a new service and submit a connection request.

Endpoints are given as a comma-separated terminal:label list, e.g.
"x:1,y:2,z:1". Requires at least two endpoints.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := parseEndpoints(args[0])
		if err != nil {
			return err
		}
		req := model.ConnectionRequest{
			Endpoints: endpoints,
			Bandwidth: model.Bandwidth{Upstream: serviceUp, Downstream: serviceDown},
		}

		fmt.Printf("Preview: request service on %s: %s (up=%d down=%d)\n",
			app.net.Name(), describeEndpointsSpec(endpoints), serviceUp, serviceDown)

		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		svc := app.net.NewService()
		if err := app.net.Initiate(svc.ID, req); err != nil {
			return fmt.Errorf("initiating service %d: %w", svc.ID, err)
		}

		if err := persistService(svc.ID); err != nil {
			return err
		}

		fmt.Printf("%s Service %d created.\n", green("OK"), svc.ID)
		return nil
	},
}

func describeEndpointsSpec(eps []model.EndPoint) string {
	parts := make([]string, 0, len(eps))
	for _, ep := range eps {
		parts = append(parts, fmt.Sprintf("%s:%d", ep.Terminal, ep.Label))
	}
	return strings.Join(parts, ", ")
}

func parseEndpoints(spec string) ([]model.EndPoint, error) {
	fields := strings.Split(spec, ",")
	out := make([]model.EndPoint, 0, len(fields))
	for _, f := range fields {
		parts := strings.SplitN(strings.TrimSpace(f), ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid endpoint %q: expected terminal:label", f)
		}
		label, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid label in endpoint %q: %w", f, err)
		}
		out = append(out, model.EndPoint{Terminal: parts[0], Label: uint32(label)})
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("at least two endpoints required, got %d", len(out))
	}
	return out, nil
}

var serviceActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Activate an established service",
	Args:  cobra.ExactArgs(1),
	RunE:  serviceTransitionRunner(func(id int) error { return app.net.Activate(id) }, "activated"),
}

var serviceDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate an active service",
	Args:  cobra.ExactArgs(1),
	RunE:  serviceTransitionRunner(func(id int) error { return app.net.Deactivate(id) }, "deactivated"),
}

var serviceReleaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Release a service and return its reservations",
	Args:  cobra.ExactArgs(1),
	RunE:  serviceTransitionRunner(func(id int) error { return app.net.Release(id) }, "released"),
}

// serviceTransitionRunner builds a RunE for a simple id-addressed service
// lifecycle transition, handling the dry-run preview and persistence
// write-back identically for activate/deactivate/release.
func serviceTransitionRunner(transition func(id int) error, verb string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid service id: %s", args[0])
		}

		fmt.Printf("Preview: %s service %d on %s\n", verb, id, app.net.Name())

		if !app.executeMode {
			printDryRunNotice()
			return nil
		}

		if err := transition(id); err != nil {
			return fmt.Errorf("service %d: %w", id, err)
		}

		if err := persistService(id); err != nil {
			return err
		}

		fmt.Printf("%s Service %d %s.\n", green("OK"), id, verb)
		return nil
	}
}

// persistService writes the service and, if the target network is an
// Aggregator, every trunk it owns back to the store in one atomic commit —
// the aggregator's trunks are the only state a service transition can
// mutate beyond the service record itself.
func persistService(id int) error {
	svc, err := app.net.AwaitService(id)
	if err != nil {
		return fmt.Errorf("service mutated but reload failed: %w", err)
	}

	var trunks []*model.Trunk
	if agg, ok := app.net.(*netcore.Aggregator); ok {
		trunks = agg.ListTrunks()
	}

	if err := app.store.CommitService(context.Background(), svc, trunks); err != nil {
		return fmt.Errorf("service mutated but persisting failed: %w", err)
	}
	return nil
}

func init() {
	serviceRequestCmd.Flags().Uint64Var(&serviceUp, "up", 0, "Required upstream bandwidth")
	serviceRequestCmd.Flags().Uint64Var(&serviceDown, "down", 0, "Required downstream bandwidth")

	serviceCmd.AddCommand(serviceListCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(serviceShowCmd)
	serviceCmd.AddCommand(serviceRequestCmd)
	serviceCmd.AddCommand(serviceActivateCmd)
	serviceCmd.AddCommand(serviceDeactivateCmd)
	serviceCmd.AddCommand(serviceReleaseCmd)
}
