// Package hub is the host-integration side: it sets up controllers, polls
// their groups on a schedule and exposes each group as a climate entity.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zberg/go-melco/pkg/melco"
)

const (
	// DefaultPollInterval is the default time between poll cycles.
	DefaultPollInterval = 30 * time.Second

	// DefaultParallel is the default number of concurrent group requests.
	DefaultParallel = 4
)

// StateReader reads one group's state. *melco.Client implements it.
type StateReader interface {
	GetGroupState(ctx context.Context, group string) (melco.GroupState, error)
}

// Snapshot is the result of a successful poll cycle. Its maps are never
// modified after publication and may be shared between readers.
type Snapshot struct {
	States    map[string]melco.GroupState
	Stale     map[string]string // group -> error, partial mode only
	UpdatedAt time.Time
}

// CoordinatorOptions tunes a Coordinator. Zero values select the defaults.
type CoordinatorOptions struct {
	Interval time.Duration
	// Partial keeps the groups that answered when others fail. Failed
	// groups keep their previous state and are listed in Snapshot.Stale.
	// When false, one failing group fails the whole cycle.
	Partial  bool
	Parallel int
	// OnUpdate is called with every newly published snapshot.
	OnUpdate func(Snapshot)
}

// Stats counts poll cycles since start.
type Stats struct {
	Cycles      uint64
	Failures    uint64
	LastSuccess time.Time
	LastError   error
}

// Coordinator polls a fixed set of groups and keeps the last good snapshot.
type Coordinator struct {
	name     string
	reader   StateReader
	groups   []string
	interval time.Duration
	partial  bool
	parallel int
	onUpdate func(Snapshot)

	cycleMu sync.Mutex // one cycle at a time

	mu       sync.RWMutex
	snapshot *Snapshot
	stats    Stats

	schedMu sync.Mutex // guards cron, cancel and stopped
	cron    *cron.Cron
	cancel  context.CancelFunc
	stopped bool
}

// NewCoordinator creates a coordinator for groups. name identifies it in logs.
func NewCoordinator(name string, reader StateReader, groups []string, opts CoordinatorOptions) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	return &Coordinator{
		name:     name,
		reader:   reader,
		groups:   append([]string(nil), groups...),
		interval: opts.Interval,
		partial:  opts.Partial,
		parallel: opts.Parallel,
		onUpdate: opts.OnUpdate,
	}
}

// Groups returns the polled group ids.
func (c *Coordinator) Groups() []string {
	return append([]string(nil), c.groups...)
}

// Start runs a first cycle, then schedules one every interval until Stop.
// The first cycle's error is returned, but scheduling happens regardless so
// a controller that is briefly offline recovers on its own. Stop may be
// called while the first cycle runs; nothing is scheduled afterwards.
func (c *Coordinator) Start(ctx context.Context) error {
	c.schedMu.Lock()
	if c.stopped {
		c.schedMu.Unlock()
		return nil
	}
	if c.cron != nil {
		c.schedMu.Unlock()
		return errors.New("coordinator already started")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", c.interval)
	if _, err := c.cron.AddFunc(spec, func() {
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("controller", c.name).Msg("Poll cycle failed")
		}
	}); err != nil {
		c.schedMu.Unlock()
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.schedMu.Unlock()

	firstErr := c.Refresh(ctx)

	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	if c.stopped {
		return firstErr
	}
	c.cron.Start()

	log.Info().
		Str("controller", c.name).
		Int("groups", len(c.groups)).
		Dur("interval", c.interval).
		Bool("partial", c.partial).
		Msg("Coordinator started")

	return firstErr
}

// Stop cancels the schedule and any running cycle, and waits for a
// scheduled cycle to finish. It is safe to call before or during Start.
func (c *Coordinator) Stop() {
	c.schedMu.Lock()
	if c.stopped {
		c.schedMu.Unlock()
		return
	}
	c.stopped = true
	sched, cancel := c.cron, c.cancel
	c.schedMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sched != nil {
		<-sched.Stop().Done()
	}
	log.Info().Str("controller", c.name).Msg("Coordinator stopped")
}

// Snapshot returns the last good snapshot, if any cycle succeeded yet.
func (c *Coordinator) Snapshot() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return Snapshot{}, false
	}
	return *c.snapshot, true
}

// State returns the last known state of group.
func (c *Coordinator) State(group string) (melco.GroupState, bool) {
	snap, ok := c.Snapshot()
	if !ok {
		return melco.GroupState{}, false
	}
	state, ok := snap.States[group]
	return state, ok
}

// Stats returns cycle counters and the outcome of the latest cycle.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LastUpdateSuccess reports whether the latest cycle succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.Cycles > 0 && c.stats.LastError == nil
}

// Refresh runs one poll cycle now. On failure the previous snapshot stays
// current and the error is returned.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	start := time.Now()
	snap, err := c.poll(ctx)

	c.mu.Lock()
	c.stats.Cycles++
	c.stats.LastError = err
	if err != nil {
		c.stats.Failures++
	} else {
		c.snapshot = snap
		c.stats.LastSuccess = snap.UpdatedAt
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}

	log.Debug().
		Str("controller", c.name).
		Int("groups", len(snap.States)).
		Int("stale", len(snap.Stale)).
		Dur("took", time.Since(start)).
		Msg("Poll cycle completed")

	if c.onUpdate != nil {
		c.onUpdate(*snap)
	}
	return nil
}

// RequestRefresh runs a cycle after a set operation. Failures are logged,
// not returned: the set itself already succeeded.
func (c *Coordinator) RequestRefresh(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("controller", c.name).Msg("Refresh after set failed")
	}
}

func (c *Coordinator) poll(ctx context.Context) (*Snapshot, error) {
	results := make([]melco.GroupState, len(c.groups))
	errs := make([]error, len(c.groups))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, group := range c.groups {
		g.Go(func() error {
			state, err := c.reader.GetGroupState(groupCtx, group)
			if err != nil {
				errs[i] = err
				if c.partial {
					return nil
				}
				return fmt.Errorf("poll group %s: %w", group, err)
			}
			results[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		States:    make(map[string]melco.GroupState, len(c.groups)),
		UpdatedAt: time.Now(),
	}
	prev, _ := c.Snapshot()

	var failed []error
	for i, group := range c.groups {
		if errs[i] == nil {
			snap.States[group] = results[i]
			continue
		}
		failed = append(failed, fmt.Errorf("poll group %s: %w", group, errs[i]))
		if snap.Stale == nil {
			snap.Stale = make(map[string]string)
		}
		snap.Stale[group] = errs[i].Error()
		if state, ok := prev.States[group]; ok {
			snap.States[group] = state
		}
	}

	if len(c.groups) > 0 && len(failed) == len(c.groups) {
		return nil, errors.Join(failed...)
	}
	for _, err := range failed {
		log.Warn().Err(err).Str("controller", c.name).Msg("Group poll failed, keeping previous state")
	}
	return snap, nil
}
