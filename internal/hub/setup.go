package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zberg/go-melco/internal/store"
	"github.com/zberg/go-melco/pkg/melco"
)

var (
	// ErrAlreadyConfigured is returned when the host already has an entry.
	ErrAlreadyConfigured = errors.New("already_configured")
	// ErrNoGroups is returned when the controller reports no groups.
	ErrNoGroups = errors.New("no_groups")
	// ErrCannotConnect wraps discovery failures during setup.
	ErrCannotConnect = errors.New("cannot_connect")
)

// Setup failure reasons reported to users.
const (
	ReasonAlreadyConfigured = "already_configured"
	ReasonNoGroups          = "no_groups"
	ReasonCannotConnect     = "cannot_connect"
	ReasonUnknown           = "unknown"
)

// GroupDiscoverer lists the groups of a controller. *melco.Client implements it.
type GroupDiscoverer interface {
	DiscoverGroups(ctx context.Context) ([]melco.GroupDescriptor, error)
}

// SetupReason maps a setup error to its user-facing reason.
func SetupReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyConfigured), errors.Is(err, store.ErrDuplicateHost):
		return ReasonAlreadyConfigured
	case errors.Is(err, ErrNoGroups):
		return ReasonNoGroups
	case errors.Is(err, ErrCannotConnect):
		return ReasonCannotConnect
	default:
		return ReasonUnknown
	}
}

// DefaultGroupName is the display name used when the controller has none.
func DefaultGroupName(group string) string {
	return fmt.Sprintf("AC Group %s", group)
}

// EntryTitle is the display title of a controller entry.
func EntryTitle(host string) string {
	return fmt.Sprintf("Mitsubishi AC (%s)", host)
}

// SetupController validates a new controller and persists it. Discovery runs
// only when host is not stored yet.
func SetupController(ctx context.Context, st *store.Store, host string, d GroupDiscoverer) (store.Entry, error) {
	if _, err := st.GetByHost(ctx, host); err == nil {
		return store.Entry{}, fmt.Errorf("%s: %w", host, ErrAlreadyConfigured)
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Entry{}, err
	}

	groups, err := d.DiscoverGroups(ctx)
	if err != nil {
		log.Warn().Err(err).Str("host", host).Str("kind", string(melco.KindOf(err))).Msg("Group discovery failed")
		return store.Entry{}, fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	if len(groups) == 0 {
		return store.Entry{}, fmt.Errorf("%s: %w", host, ErrNoGroups)
	}

	entry, err := st.Create(ctx, host, EntryTitle(host), groupNames(groups))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateHost) {
			return store.Entry{}, fmt.Errorf("%s: %w", host, ErrAlreadyConfigured)
		}
		return store.Entry{}, err
	}
	log.Info().Str("host", host).Int("groups", len(entry.Groups)).Str("id", entry.ID).Msg("Controller configured")
	return entry, nil
}

// groupNames maps discovered groups to display names, filling in defaults.
func groupNames(groups []melco.GroupDescriptor) map[string]string {
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		name := g.Name
		if name == "" {
			name = DefaultGroupName(g.Group)
		}
		names[g.Group] = name
	}
	return names
}
