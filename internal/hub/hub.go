package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zberg/go-melco/internal/store"
	"github.com/zberg/go-melco/pkg/melco"
)

// ErrUnknownEntity is returned for climate or controller ids the hub does not run.
var ErrUnknownEntity = errors.New("unknown entity")

// Controller is everything the hub needs from a controller connection.
type Controller interface {
	StateReader
	Commander
	GroupDiscoverer
}

// ClientFactory opens a controller connection for host.
type ClientFactory func(host string) (Controller, error)

// MelcoFactory returns a ClientFactory building *melco.Client values.
func MelcoFactory(opts ...melco.ClientOption) ClientFactory {
	return func(host string) (Controller, error) {
		return melco.NewClient(host, opts...)
	}
}

// Runtime is a running controller entry.
type Runtime struct {
	Entry       store.Entry
	Client      Controller
	Coordinator *Coordinator
	Climates    []*Climate
}

// Event is published to subscribers after each successful poll cycle.
type Event struct {
	Controller string         `json:"controller"`
	Host       string         `json:"host"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Groups     []ClimateState `json:"groups"`
}

// Hub owns the runtimes of all configured controllers.
type Hub struct {
	store   *store.Store
	factory ClientFactory
	opts    CoordinatorOptions

	mu       sync.RWMutex
	runtimes map[string]*Runtime
	ctx      context.Context

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates a hub. opts.OnUpdate is ignored; subscribe instead.
func New(st *store.Store, factory ClientFactory, opts CoordinatorOptions) *Hub {
	opts.OnUpdate = nil
	return &Hub{
		store:    st,
		factory:  factory,
		opts:     opts,
		runtimes: make(map[string]*Runtime),
		subs:     make(map[int]chan Event),
	}
}

// Start loads every stored entry and starts polling it. Entries whose first
// poll fails are still started.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	entries, err := h.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load controllers: %w", err)
	}
	for _, entry := range entries {
		if _, err := h.startRuntime(entry); err != nil {
			log.Error().Err(err).Str("host", entry.Host).Msg("Failed to start controller")
		}
	}
	log.Info().Int("controllers", len(entries)).Msg("Hub started")
	return nil
}

// Setup configures a new controller and starts polling it.
func (h *Hub) Setup(ctx context.Context, host string) (*Runtime, error) {
	client, err := h.factory(host)
	if err != nil {
		return nil, err
	}
	entry, err := SetupController(ctx, h.store, host, client)
	if err != nil {
		return nil, err
	}
	return h.startRuntimeWith(entry, client)
}

// Rediscover lists the groups of controller id again, stores them and
// restarts polling with the new group set.
func (h *Hub) Rediscover(ctx context.Context, id string) (*Runtime, error) {
	rt, ok := h.Runtime(id)
	if !ok {
		return nil, fmt.Errorf("controller %s: %w", id, ErrUnknownEntity)
	}

	groups, err := rt.Client.DiscoverGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%s: %w", rt.Entry.Host, ErrNoGroups)
	}

	names := groupNames(groups)
	if err := h.store.UpdateGroups(ctx, id, names); err != nil {
		return nil, err
	}
	entry := rt.Entry
	entry.Groups = names

	log.Info().Str("host", entry.Host).Int("groups", len(names)).Msg("Controller groups rediscovered")
	return h.startRuntimeWith(entry, rt.Client)
}

// Remove stops and deletes the controller entry id.
func (h *Hub) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	rt, ok := h.runtimes[id]
	delete(h.runtimes, id)
	h.mu.Unlock()

	if ok {
		rt.Coordinator.Stop()
	}
	if err := h.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) && !ok {
			return fmt.Errorf("controller %s: %w", id, ErrUnknownEntity)
		}
		return err
	}
	log.Info().Str("id", id).Msg("Controller removed")
	return nil
}

// Runtimes returns the running controllers ordered by host.
func (h *Hub) Runtimes() []*Runtime {
	h.mu.RLock()
	out := make([]*Runtime, 0, len(h.runtimes))
	for _, rt := range h.runtimes {
		out = append(out, rt)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.Host < out[j].Entry.Host })
	return out
}

// Runtime returns the running controller id.
func (h *Hub) Runtime(id string) (*Runtime, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rt, ok := h.runtimes[id]
	return rt, ok
}

// Climates returns all climate entities, grouped by controller.
func (h *Hub) Climates() []*Climate {
	var out []*Climate
	for _, rt := range h.Runtimes() {
		out = append(out, rt.Climates...)
	}
	return out
}

// Climate looks up an entity by unique id.
func (h *Hub) Climate(uniqueID string) (*Climate, error) {
	for _, c := range h.Climates() {
		if c.UniqueID == uniqueID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("climate %s: %w", uniqueID, ErrUnknownEntity)
}

// Subscribe registers for poll events. The returned cancel func must be
// called to release the subscription. Slow subscribers miss events.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 8)
	h.subs[id] = ch

	return ch, func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Stop stops every coordinator and closes all subscriptions.
func (h *Hub) Stop() {
	h.mu.Lock()
	runtimes := h.runtimes
	h.runtimes = make(map[string]*Runtime)
	h.mu.Unlock()

	for _, rt := range runtimes {
		rt.Coordinator.Stop()
	}

	h.subMu.Lock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.subMu.Unlock()
}

func (h *Hub) startRuntime(entry store.Entry) (*Runtime, error) {
	client, err := h.factory(entry.Host)
	if err != nil {
		return nil, err
	}
	return h.startRuntimeWith(entry, client)
}

func (h *Hub) startRuntimeWith(entry store.Entry, client Controller) (*Runtime, error) {
	h.mu.RLock()
	ctx := h.ctx
	h.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	rt := &Runtime{Entry: entry, Client: client}

	opts := h.opts
	opts.OnUpdate = func(snap Snapshot) { h.publish(rt, snap) }
	rt.Coordinator = NewCoordinator(entry.Host, client, entry.GroupIDs(), opts)
	for _, group := range entry.GroupIDs() {
		rt.Climates = append(rt.Climates, NewClimate(entry.ID, group, entry.Groups[group], client, rt.Coordinator))
	}

	h.mu.Lock()
	if old, ok := h.runtimes[entry.ID]; ok {
		h.mu.Unlock()
		old.Coordinator.Stop()
		h.mu.Lock()
	}
	h.runtimes[entry.ID] = rt
	h.mu.Unlock()

	if err := rt.Coordinator.Start(ctx); err != nil {
		log.Warn().Err(err).Str("host", entry.Host).Msg("Initial poll failed, entities unavailable until the next cycle")
	}
	return rt, nil
}

func (h *Hub) publish(rt *Runtime, snap Snapshot) {
	ev := Event{
		Controller: rt.Entry.ID,
		Host:       rt.Entry.Host,
		UpdatedAt:  snap.UpdatedAt,
	}
	for _, c := range rt.Climates {
		ev.Groups = append(ev.Groups, c.State())
	}

	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
