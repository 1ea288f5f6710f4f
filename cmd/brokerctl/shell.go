package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l2fabric/l2fabric/pkg/model"
	"github.com/l2fabric/l2fabric/pkg/netcore"
	"github.com/l2fabric/l2fabric/pkg/termfmt"
)

// Shell provides an interactive REPL bound to a single network for the
// duration of the session.
type Shell struct {
	net      netcore.Network
	reader   *bufio.Reader
	commands map[string]func(args []string)
}

// NewShell creates a new interactive shell for the given network.
func NewShell(net netcore.Network) *Shell {
	s := &Shell{net: net, reader: bufio.NewReader(os.Stdin)}
	s.commands = map[string]func(args []string){
		"terminals": s.cmdTerminals,
		"services":  s.cmdServices,
		"status":    s.cmdStatus,
		"request":   s.cmdRequest,
		"activate":  s.cmdActivate,
		"release":   s.cmdRelease,
		"help":      func([]string) { s.cmdHelp() },
		"?":         func([]string) { s.cmdHelp() },
	}
	return s
}

// Run starts the interactive shell loop.
func (s *Shell) Run() error {
	fmt.Printf("Connected to %s.\n", bold(s.net.Name()))
	fmt.Println("Type 'help' for available commands.")

	for {
		fmt.Printf("%s> ", s.net.Name())

		line, err := s.reader.ReadString('\n')
		if err != nil { // EOF
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		cmd := args[0]

		switch cmd {
		case "quit", "exit", "q":
			return nil
		default:
			if fn, ok := s.commands[cmd]; ok {
				fn(args[1:])
			} else {
				fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
			}
		}
	}
}

func (s *Shell) cmdTerminals(args []string) {
	names := s.net.ListTerminals()
	if len(names) == 0 {
		fmt.Println("  (none)")
		return
	}
	t := termfmt.NewTable("NAME", "BACKING")
	for _, name := range names {
		term, err := s.net.GetTerminal(name)
		if err != nil {
			continue
		}
		t.Row(name, term.Backing.String())
	}
	t.Flush()
}

func (s *Shell) cmdServices(args []string) {
	ids := s.net.ListServices()
	if len(ids) == 0 {
		fmt.Println("  (none)")
		return
	}
	t := termfmt.NewTable("ID", "STATE")
	for _, id := range ids {
		state, err := s.net.Status(id)
		if err != nil {
			continue
		}
		t.Row(strconv.Itoa(id), termfmt.StateColor(state))
	}
	t.Flush()
}

func (s *Shell) cmdStatus(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: status <id>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error: invalid service id: %s\n", args[0])
		return
	}
	state, err := s.net.Status(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Service %d: %s\n", id, termfmt.StateColor(state))
}

func (s *Shell) cmdRequest(args []string) {
	if len(args) != 3 {
		fmt.Println("Usage: request <endpoint:label,...> <up> <down>")
		return
	}
	endpoints, err := parseEndpoints(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	up, err1 := strconv.ParseUint(args[1], 10, 64)
	down, err2 := strconv.ParseUint(args[2], 10, 64)
	if err1 != nil || err2 != nil {
		fmt.Println("Error: up/down must be non-negative integers")
		return
	}

	svc := s.net.NewService()
	req := model.ConnectionRequest{Endpoints: endpoints, Bandwidth: model.Bandwidth{Upstream: up, Downstream: down}}
	if err := s.net.Initiate(svc.ID, req); err != nil {
		fmt.Printf("Error: initiating service %d: %v\n", svc.ID, err)
		return
	}
	if err := s.persist(svc.ID); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	fmt.Printf("%s Service %d created.\n", green("OK"), svc.ID)
}

func (s *Shell) cmdActivate(args []string) { s.transition(args, "activate", s.net.Activate) }
func (s *Shell) cmdRelease(args []string)  { s.transition(args, "release", s.net.Release) }

func (s *Shell) transition(args []string, name string, fn func(id int) error) {
	verb := name + "d"
	if len(args) != 1 {
		fmt.Printf("Usage: %s <id>\n", name)
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error: invalid service id: %s\n", args[0])
		return
	}
	if err := fn(id); err != nil {
		fmt.Printf("Error: service %d: %v\n", id, err)
		return
	}
	if err := s.persist(id); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	fmt.Printf("%s Service %d %s.\n", green("OK"), id, verb)
}

func (s *Shell) persist(id int) error {
	svc, err := s.net.AwaitService(id)
	if err != nil {
		return fmt.Errorf("service mutated but reload failed: %w", err)
	}
	var trunks []*model.Trunk
	if agg, ok := s.net.(*netcore.Aggregator); ok {
		trunks = agg.ListTrunks()
	}
	return app.store.CommitService(context.Background(), svc, trunks)
}

func (s *Shell) cmdHelp() {
	fmt.Println(`Available commands:
  terminals              List terminals
  services               List services
  status <id>            Show a service's state
  request <eps> <up> <down>  Create and initiate a service (eps: x:1,y:2)
  activate <id>          Activate an established service
  release <id>           Release a service
  help                   Show this help
  quit                   Exit the shell`)
}

var shellCmd = &cobra.Command{
	Use:    "shell",
	Short:  "Start an interactive shell bound to the target network",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.net == nil {
			return fmt.Errorf("shell requires a target network: use -n <network>")
		}
		return NewShell(app.net).Run()
	},
}
