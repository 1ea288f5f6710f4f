// Package persist records broker state in Redis so a restart can
// reconstruct terminals, trunks, label allocations, external terminal
// mappings, and live service plans without re-deriving them (spec §6).
// Records use the "TABLE|network|key" hash-key convention and are written
// with go-redis/v8, mirroring the hash-per-entity shape a device config-db
// client uses against its own CONFIG_DB.
package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/l2fabric/l2fabric/pkg/model"
)

const (
	tableTerminal         = "TERMINAL"
	tableExternalTerminal = "EXTERNAL_TERMINAL"
	tableTrunk            = "TRUNK"
	tableService          = "SERVICE"
)

// Store persists the state of one named network (a switch or aggregator)
// to Redis.
type Store struct {
	client  *redis.Client
	network string
}

// NewStore returns a Store scoped to network, using client for storage.
func NewStore(client *redis.Client, network string) *Store {
	return &Store{client: client, network: network}
}

func (s *Store) key(table, entityKey string) string {
	return fmt.Sprintf("%s|%s|%s", table, s.network, entityKey)
}

func hset(ctx context.Context, pipe redis.Pipeliner, key string, fields map[string]string) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	pipe.HSet(ctx, key, args...)
}

// SaveTerminal upserts a fabric-backed terminal record.
func (s *Store) SaveTerminal(ctx context.Context, t *model.Terminal) error {
	fields := map[string]string{
		"backing":          t.Backing.String(),
		"fabric_interface": t.FabricInterface,
		"subnetwork":       t.SubnetworkName,
		"subterminal":      t.SubterminalName,
	}
	return s.client.HSet(ctx, s.key(tableTerminal, t.Name), toArgs(fields)...).Err()
}

// DeleteTerminal removes a terminal record.
func (s *Store) DeleteTerminal(ctx context.Context, name string) error {
	return s.client.Del(ctx, s.key(tableTerminal, name)).Err()
}

// LoadTerminals returns every persisted terminal for the network.
func (s *Store) LoadTerminals(ctx context.Context) (map[string]*model.Terminal, error) {
	keys, err := s.client.Keys(ctx, fmt.Sprintf("%s|%s|*", tableTerminal, s.network)).Result()
	if err != nil {
		return nil, fmt.Errorf("persist: scanning terminals: %w", err)
	}
	out := make(map[string]*model.Terminal, len(keys))
	for _, key := range keys {
		name := entityKeyOf(key)
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("persist: loading terminal %s: %w", name, err)
		}
		out[name] = &model.Terminal{
			Name:            name,
			Backing:         backingFromString(fields["backing"]),
			FabricInterface: fields["fabric_interface"],
			SubnetworkName:  fields["subnetwork"],
			SubterminalName: fields["subterminal"],
		}
	}
	return out, nil
}

func backingFromString(s string) model.Backing {
	if s == model.BackingSubnetwork.String() {
		return model.BackingSubnetwork
	}
	return model.BackingFabric
}

// SaveTrunk upserts a trunk record, including its label allocation state.
func (s *Store) SaveTrunk(ctx context.Context, t *model.Trunk) error {
	freeJSON, err := json.Marshal(t.Free)
	if err != nil {
		return fmt.Errorf("persist: marshaling free labels for trunk %s: %w", t.ID, err)
	}
	allocJSON, err := json.Marshal(t.Allocations)
	if err != nil {
		return fmt.Errorf("persist: marshaling allocations for trunk %s: %w", t.ID, err)
	}
	fields := map[string]string{
		"end_a_network": t.EndA.Network,
		"end_a_terminal": t.EndA.Terminal,
		"end_b_network": t.EndB.Network,
		"end_b_terminal": t.EndB.Terminal,
		"delay":          fmt.Sprintf("%g", t.Delay),
		"capacity_up":    fmt.Sprintf("%d", t.Capacity.Upstream),
		"capacity_down":  fmt.Sprintf("%d", t.Capacity.Downstream),
		"allocated_up":   fmt.Sprintf("%d", t.Allocated.Upstream),
		"allocated_down": fmt.Sprintf("%d", t.Allocated.Downstream),
		"free_labels":    string(freeJSON),
		"allocations":    string(allocJSON),
	}
	return s.client.HSet(ctx, s.key(tableTrunk, t.ID), toArgs(fields)...).Err()
}

// DeleteTrunk removes a trunk record.
func (s *Store) DeleteTrunk(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(tableTrunk, id)).Err()
}

// LoadTrunks returns every persisted trunk for the network.
func (s *Store) LoadTrunks(ctx context.Context) (map[string]*model.Trunk, error) {
	keys, err := s.client.Keys(ctx, fmt.Sprintf("%s|%s|*", tableTrunk, s.network)).Result()
	if err != nil {
		return nil, fmt.Errorf("persist: scanning trunks: %w", err)
	}
	out := make(map[string]*model.Trunk, len(keys))
	for _, key := range keys {
		id := entityKeyOf(key)
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("persist: loading trunk %s: %w", id, err)
		}
		trunk, err := trunkFromFields(id, fields)
		if err != nil {
			return nil, err
		}
		out[id] = trunk
	}
	return out, nil
}

func trunkFromFields(id string, fields map[string]string) (*model.Trunk, error) {
	var free map[uint32]struct{}
	if err := json.Unmarshal([]byte(fields["free_labels"]), &free); err != nil {
		return nil, fmt.Errorf("persist: parsing free labels for trunk %s: %w", id, err)
	}
	var allocations map[uint32]model.LabelAllocation
	if err := json.Unmarshal([]byte(fields["allocations"]), &allocations); err != nil {
		return nil, fmt.Errorf("persist: parsing allocations for trunk %s: %w", id, err)
	}
	var delay, capUp, capDown, allocUp, allocDown float64
	fmt.Sscanf(fields["delay"], "%g", &delay)
	fmt.Sscanf(fields["capacity_up"], "%g", &capUp)
	fmt.Sscanf(fields["capacity_down"], "%g", &capDown)
	fmt.Sscanf(fields["allocated_up"], "%g", &allocUp)
	fmt.Sscanf(fields["allocated_down"], "%g", &allocDown)

	return &model.Trunk{
		ID:          id,
		EndA:        model.TrunkEnd{Network: fields["end_a_network"], Terminal: fields["end_a_terminal"]},
		EndB:        model.TrunkEnd{Network: fields["end_b_network"], Terminal: fields["end_b_terminal"]},
		Delay:       delay,
		Capacity:    model.Bandwidth{Upstream: uint64(capUp), Downstream: uint64(capDown)},
		Allocated:   model.Bandwidth{Upstream: uint64(allocUp), Downstream: uint64(allocDown)},
		Free:        free,
		Allocations: allocations,
	}, nil
}

// CommitService atomically persists a service record together with the
// trunks its plan reserves, so a crash between the two writes can never
// leave labels allocated without a service to account for them, or vice
// versa (spec §6 "atomic per-service commit").
func (s *Store) CommitService(ctx context.Context, svc *model.Service, trunks []*model.Trunk) error {
	planJSON, err := json.Marshal(svc.Plan)
	if err != nil {
		return fmt.Errorf("persist: marshaling plan for service %d: %w", svc.ID, err)
	}
	reservationsJSON, err := json.Marshal(svc.Reservations)
	if err != nil {
		return fmt.Errorf("persist: marshaling reservations for service %d: %w", svc.ID, err)
	}
	subServicesJSON, err := json.Marshal(svc.SubServiceIDs)
	if err != nil {
		return fmt.Errorf("persist: marshaling sub-service ids for service %d: %w", svc.ID, err)
	}
	requestJSON, err := json.Marshal(svc.Request)
	if err != nil {
		return fmt.Errorf("persist: marshaling request for service %d: %w", svc.ID, err)
	}

	pipe := s.client.TxPipeline()
	hset(ctx, pipe, s.key(tableService, fmt.Sprintf("%d", svc.ID)), map[string]string{
		"state":        svc.State.String(),
		"request":      string(requestJSON),
		"plan":         string(planJSON),
		"reservations": string(reservationsJSON),
		"sub_services": string(subServicesJSON),
		"bridge_id":    svc.BridgeID,
	})
	for _, t := range trunks {
		freeJSON, ferr := json.Marshal(t.Free)
		if ferr != nil {
			return fmt.Errorf("persist: marshaling free labels for trunk %s: %w", t.ID, ferr)
		}
		allocJSON, aerr := json.Marshal(t.Allocations)
		if aerr != nil {
			return fmt.Errorf("persist: marshaling allocations for trunk %s: %w", t.ID, aerr)
		}
		hset(ctx, pipe, s.key(tableTrunk, t.ID), map[string]string{
			"allocated_up":   fmt.Sprintf("%d", t.Allocated.Upstream),
			"allocated_down": fmt.Sprintf("%d", t.Allocated.Downstream),
			"free_labels":    string(freeJSON),
			"allocations":    string(allocJSON),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("persist: committing service %d: %w", svc.ID, err)
	}
	return nil
}

// TrunkRestorer is implemented by *netcore.Aggregator. A Switch owns no
// trunks, so Reconcile skips networks that don't implement it.
type TrunkRestorer interface {
	RestoreTrunk(id string, free map[uint32]struct{}, allocations map[uint32]model.LabelAllocation, allocatedUp, allocatedDown uint64) error
}

// Reconcile replays persisted trunk allocation state onto a freshly-built
// network after a restart (spec §4.6 "reconstruct plans"): net's trunks
// already exist with their static topology-derived fields, so Reconcile
// only needs to restore each trunk's free-label set, live allocations, and
// allocated bandwidth from Redis. net is a no-op target if it doesn't
// implement TrunkRestorer (a Switch, which owns no trunks). Callers still
// need their own fabric driver's Retain pass (see
// netcore.Aggregator.Reconcile / netcore.Switch.Reconcile) to re-declare
// live bridges — this only restores the broker's own bookkeeping.
func (s *Store) Reconcile(ctx context.Context, net interface{}) error {
	restorer, ok := net.(TrunkRestorer)
	if !ok {
		return nil
	}
	trunks, err := s.LoadTrunks(ctx)
	if err != nil {
		return fmt.Errorf("persist: reconcile: loading trunks: %w", err)
	}
	for id, t := range trunks {
		if err := restorer.RestoreTrunk(id, t.Free, t.Allocations, t.Allocated.Upstream, t.Allocated.Downstream); err != nil {
			return fmt.Errorf("persist: reconcile: restoring trunk %s: %w", id, err)
		}
	}
	return nil
}

// DeleteService removes a service record (called once it reaches RELEASED
// and its trunk reservations have already been returned).
func (s *Store) DeleteService(ctx context.Context, id int) error {
	return s.client.Del(ctx, s.key(tableService, fmt.Sprintf("%d", id))).Err()
}

// LoadServices returns every persisted service for the network, keyed by
// service id.
func (s *Store) LoadServices(ctx context.Context) (map[int]*model.Service, error) {
	keys, err := s.client.Keys(ctx, fmt.Sprintf("%s|%s|*", tableService, s.network)).Result()
	if err != nil {
		return nil, fmt.Errorf("persist: scanning services: %w", err)
	}
	out := make(map[int]*model.Service, len(keys))
	for _, key := range keys {
		idStr := entityKeyOf(key)
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			return nil, fmt.Errorf("persist: invalid service key %s: %w", key, err)
		}
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("persist: loading service %d: %w", id, err)
		}
		svc, err := serviceFromFields(id, s.network, fields)
		if err != nil {
			return nil, err
		}
		out[id] = svc
	}
	return out, nil
}

func serviceFromFields(id int, network string, fields map[string]string) (*model.Service, error) {
	var req model.ConnectionRequest
	if err := json.Unmarshal([]byte(fields["request"]), &req); err != nil {
		return nil, fmt.Errorf("persist: parsing request for service %d: %w", id, err)
	}
	var plan model.Plan
	if err := json.Unmarshal([]byte(fields["plan"]), &plan); err != nil {
		return nil, fmt.Errorf("persist: parsing plan for service %d: %w", id, err)
	}
	var reservations []model.Reservation
	if err := json.Unmarshal([]byte(fields["reservations"]), &reservations); err != nil {
		return nil, fmt.Errorf("persist: parsing reservations for service %d: %w", id, err)
	}
	var subServices map[string]int
	if err := json.Unmarshal([]byte(fields["sub_services"]), &subServices); err != nil {
		return nil, fmt.Errorf("persist: parsing sub-service ids for service %d: %w", id, err)
	}
	return &model.Service{
		ID:            id,
		Network:       network,
		State:         stateFromString(fields["state"]),
		Request:       req,
		Plan:          plan,
		SubServiceIDs: subServices,
		BridgeID:      fields["bridge_id"],
		Reservations:  reservations,
	}, nil
}

func stateFromString(s string) model.State {
	for st := model.Dormant; st <= model.Failed; st++ {
		if st.String() == s {
			return st
		}
	}
	return model.Dormant
}

func toArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// entityKeyOf extracts the trailing entity key from a "TABLE|network|key"
// Redis key.
func entityKeyOf(redisKey string) string {
	first := indexByte(redisKey, '|')
	if first < 0 {
		return redisKey
	}
	second := indexByte(redisKey[first+1:], '|')
	if second < 0 {
		return redisKey[first+1:]
	}
	return redisKey[first+1+second+1:]
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
