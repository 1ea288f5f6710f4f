// Package labfab implements a fabric.Driver against a containerlab-style
// lab switch reachable over SSH: bridges are realized as Open vSwitch
// bridges, circuits as VLAN-tagged ports. The SSH connection is dialed
// once and reused for one-shot command sessions.
package labfab

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/l2fabric/l2fabric/pkg/fabric"
	"github.com/l2fabric/l2fabric/pkg/util"
)

// Config names the lab switch to connect to and how to authenticate.
type Config struct {
	Host string
	User string
	Pass string
	Port int

	// BridgePrefix namespaces the OVS bridges this driver creates, so
	// Retain only ever touches bridges it owns.
	BridgePrefix string
}

// Driver drives one lab switch's Open vSwitch instance over SSH.
type Driver struct {
	cfg    Config
	client *ssh.Client

	mu       sync.Mutex
	listener map[string]fabric.Listener
}

// Dial opens the SSH connection used for every subsequent command.
func Dial(cfg Config) (*Driver, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.BridgePrefix == "" {
		cfg.BridgePrefix = "l2fab"
	}
	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // lab environment only
		Timeout:         15 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("labfab: SSH dial %s@%s: %w", cfg.User, addr, err)
	}
	return &Driver{cfg: cfg, client: client, listener: make(map[string]fabric.Listener)}, nil
}

// Close tears down the SSH connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func (d *Driver) exec(cmd string) (string, error) {
	session, err := d.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("labfab: opening SSH session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		return string(out), fmt.Errorf("labfab: exec %q: %w", cmd, err)
	}
	return string(out), nil
}

// InterfacesOf resolves a fabric.Interface from an interface name, checking
// the device actually has a link by that name.
func (d *Driver) InterfacesOf(description string) (fabric.Interface, error) {
	if _, err := d.exec(fmt.Sprintf("ip link show %s", shellQuote(description))); err != nil {
		return fabric.Interface{}, fmt.Errorf("labfab: interface %s not found: %w", description, err)
	}
	return fabric.Interface{Name: description}, nil
}

// Bridge creates (or, if an equal circuit-set already exists, reuses) an
// OVS bridge binding every circuit's interface at its VLAN label. The
// remote commands run in a goroutine: real switch provisioning is not
// instantaneous, so the result reaches the caller only through listener
// (spec §4.2 "driver operations are asynchronous").
func (d *Driver) Bridge(listener fabric.Listener, circuits map[fabric.Circuit]fabric.TrafficFlow) (*fabric.Bridge, error) {
	bridgeID := d.cfg.BridgePrefix + "-" + circuitSetDigest(circuits)
	d.mu.Lock()
	d.listener[bridgeID] = listener
	d.mu.Unlock()

	bridge := &fabric.Bridge{ID: bridgeID, Circuits: circuits}

	go func() {
		if err := d.provisionBridge(bridgeID, circuits); err != nil {
			listener.OnBridgeEvent(fabric.BridgeEvent{BridgeID: bridgeID, State: fabric.BridgeError, Err: err})
			return
		}
		listener.OnBridgeEvent(fabric.BridgeEvent{BridgeID: bridgeID, State: fabric.BridgeCreated})
	}()

	return bridge, nil
}

func (d *Driver) provisionBridge(bridgeID string, circuits map[fabric.Circuit]fabric.TrafficFlow) error {
	if _, err := d.exec(fmt.Sprintf("ovs-vsctl --may-exist add-br %s", shellQuote(bridgeID))); err != nil {
		return err
	}
	for circuit := range circuits {
		cmd := fmt.Sprintf("ovs-vsctl --may-exist add-port %s %s tag=%d",
			shellQuote(bridgeID), shellQuote(circuit.Interface.Name), circuit.Label)
		if _, err := d.exec(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Retain destroys every OVS bridge owned by this driver (prefixed by
// BridgePrefix) that is not named in liveBridgeIDs, notifying each
// bridge's registered listener of its destruction (spec §4.6 restart
// reconciliation).
func (d *Driver) Retain(liveBridgeIDs []string) error {
	live := make(map[string]bool, len(liveBridgeIDs))
	for _, id := range liveBridgeIDs {
		live[id] = true
	}

	out, err := d.exec("ovs-vsctl list-br")
	if err != nil {
		return fmt.Errorf("labfab: listing bridges: %w", err)
	}

	var stale []string
	for _, name := range strings.Fields(out) {
		if strings.HasPrefix(name, d.cfg.BridgePrefix+"-") && !live[name] {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)

	for _, name := range stale {
		if _, err := d.exec(fmt.Sprintf("ovs-vsctl --if-exists del-br %s", shellQuote(name))); err != nil {
			util.WithField("bridge", name).Warn("labfab: failed to remove stale bridge")
			continue
		}
		d.mu.Lock()
		listener := d.listener[name]
		delete(d.listener, name)
		d.mu.Unlock()
		if listener != nil {
			listener.OnBridgeEvent(fabric.BridgeEvent{BridgeID: name, State: fabric.BridgeDestroyed})
		}
	}
	return nil
}

// circuitSetDigest returns a short, deterministic identifier for a circuit
// set, used to make bridge ids stable and to detect an equal circuit-set
// re-bridge request.
func circuitSetDigest(circuits map[fabric.Circuit]fabric.TrafficFlow) string {
	keys := make([]string, 0, len(circuits))
	for c := range circuits {
		keys = append(keys, fmt.Sprintf("%s.%d", c.Interface.Name, c.Label))
	}
	sort.Strings(keys)
	joined := strings.Join(keys, ",")
	var sum uint32 = 2166136261
	for i := 0; i < len(joined); i++ {
		sum ^= uint32(joined[i])
		sum *= 16777619
	}
	return fmt.Sprintf("%08x", sum)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
