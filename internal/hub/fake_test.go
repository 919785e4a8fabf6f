package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zberg/go-melco/internal/store"
	"github.com/zberg/go-melco/pkg/melco"
)

// fakeController keeps group states in memory and records set calls.
type fakeController struct {
	mu       sync.Mutex
	states   map[string]melco.GroupState
	failing  map[string]error
	groups   []melco.GroupDescriptor
	groupErr error
	calls    []string
	reads    int
}

func newFakeController() *fakeController {
	return &fakeController{
		states:  make(map[string]melco.GroupState),
		failing: make(map[string]error),
	}
}

func (f *fakeController) setState(group string, drive melco.Drive, mode melco.Mode, set, inlet float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[group] = melco.GroupState{Group: group, Drive: drive, Mode: mode, SetTemp: &set, InletTemp: &inlet}
}

func (f *fakeController) fail(group string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, group)
		return
	}
	f.failing[group] = err
}

func (f *fakeController) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) GetGroupState(_ context.Context, group string) (melco.GroupState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.failing[group]; err != nil {
		return melco.GroupState{}, err
	}
	state, ok := f.states[group]
	if !ok {
		return melco.GroupState{}, &melco.DecodeError{Err: fmt.Errorf("group %s not found", group)}
	}
	return state, nil
}

func (f *fakeController) SetDrive(_ context.Context, group string, drive melco.Drive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Drive="+string(drive))
	s := f.states[group]
	s.Group, s.Drive = group, drive
	f.states[group] = s
	return nil
}

func (f *fakeController) SetMode(_ context.Context, group string, mode melco.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Mode="+string(mode))
	s := f.states[group]
	s.Group, s.Mode = group, mode
	f.states[group] = s
	return nil
}

func (f *fakeController) SetTemperature(_ context.Context, group string, celsius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("SetTemp=%g", celsius))
	s := f.states[group]
	s.Group, s.SetTemp = group, &celsius
	f.states[group] = s
	return nil
}

func (f *fakeController) DiscoverGroups(context.Context) ([]melco.GroupDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups, f.groupErr
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "melco.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}
