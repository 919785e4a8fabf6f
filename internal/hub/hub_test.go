package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zberg/go-melco/pkg/melco"
)

func newTestHub(t *testing.T, fake *fakeController) *Hub {
	t.Helper()
	h := New(openTestStore(t), func(string) (Controller, error) { return fake, nil }, CoordinatorOptions{Interval: time.Hour})
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Stop)
	return h
}

func TestHub_SetupStartsRuntime(t *testing.T) {
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "2", Name: "Office"}, {Group: "10", Name: "Hall"}}
	fake.setState("2", melco.DriveOn, melco.ModeCool, 24, 26)
	fake.setState("10", melco.DriveOff, melco.ModeHeat, 20, 18)

	h := newTestHub(t, fake)
	rt, err := h.Setup(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	climates := h.Climates()
	require.Len(t, climates, 2)
	assert.Equal(t, "2", climates[0].Group)
	assert.Equal(t, "10", climates[1].Group)

	c, err := h.Climate(rt.Entry.ID + "_2")
	require.NoError(t, err)
	assert.Equal(t, "Office", c.Name)
	assert.Equal(t, HVACCool, c.State().HVACMode)

	got, ok := h.Runtime(rt.Entry.ID)
	require.True(t, ok)
	assert.Same(t, rt, got)
}

func TestHub_StartLoadsStoredEntries(t *testing.T) {
	fake := newFakeController()
	fake.setState("1", melco.DriveOn, melco.ModeFan, 24, 26)

	st := openTestStore(t)
	_, err := st.Create(context.Background(), "10.0.0.9", EntryTitle("10.0.0.9"), map[string]string{"1": "Lobby"})
	require.NoError(t, err)

	h := New(st, func(string) (Controller, error) { return fake, nil }, CoordinatorOptions{Interval: time.Hour})
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop()

	require.Len(t, h.Runtimes(), 1)
	climates := h.Climates()
	require.Len(t, climates, 1)
	assert.Equal(t, HVACFanOnly, climates[0].State().HVACMode)
}

func TestHub_Subscribe(t *testing.T) {
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "1"}}
	fake.setState("1", melco.DriveOn, melco.ModeDry, 24, 26)

	h := newTestHub(t, fake)
	events, cancel := h.Subscribe()
	defer cancel()

	rt, err := h.Setup(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, rt.Entry.ID, ev.Controller)
		require.Len(t, ev.Groups, 1)
		assert.Equal(t, HVACDry, ev.Groups[0].HVACMode)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestHub_Remove(t *testing.T) {
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "1"}}
	fake.setState("1", melco.DriveOn, melco.ModeDry, 24, 26)

	h := newTestHub(t, fake)
	rt, err := h.Setup(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	require.NoError(t, h.Remove(context.Background(), rt.Entry.ID))
	assert.Empty(t, h.Runtimes())

	err = h.Remove(context.Background(), rt.Entry.ID)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = h.Climate("nope")
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestHub_Rediscover(t *testing.T) {
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "1", Name: "Lobby"}}
	fake.setState("1", melco.DriveOn, melco.ModeCool, 24, 26)
	fake.setState("7", melco.DriveOff, melco.ModeHeat, 21, 19)

	h := newTestHub(t, fake)
	rt, err := h.Setup(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	require.Len(t, h.Climates(), 1)

	fake.mu.Lock()
	fake.groups = []melco.GroupDescriptor{{Group: "1", Name: "Lobby"}, {Group: "7"}}
	fake.mu.Unlock()

	updated, err := h.Rediscover(context.Background(), rt.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "7"}, updated.Entry.GroupIDs())

	climates := h.Climates()
	require.Len(t, climates, 2)
	assert.Equal(t, "AC Group 7", climates[1].Name)
	assert.Equal(t, HVACOff, climates[1].State().HVACMode)

	stored, err := h.store.Get(context.Background(), rt.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Lobby", "7": "AC Group 7"}, stored.Groups)

	got, ok := h.Runtime(rt.Entry.ID)
	require.True(t, ok)
	assert.Same(t, updated, got)
}

func TestHub_RediscoverErrors(t *testing.T) {
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "1"}}
	fake.setState("1", melco.DriveOn, melco.ModeCool, 24, 26)

	h := newTestHub(t, fake)
	_, err := h.Rediscover(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	rt, err := h.Setup(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	fake.mu.Lock()
	fake.groups = nil
	fake.mu.Unlock()
	_, err = h.Rediscover(context.Background(), rt.Entry.ID)
	assert.ErrorIs(t, err, ErrNoGroups)

	fake.mu.Lock()
	fake.groupErr = errors.New("connection refused")
	fake.mu.Unlock()
	_, err = h.Rediscover(context.Background(), rt.Entry.ID)
	assert.ErrorIs(t, err, ErrCannotConnect)

	stored, err := h.store.Get(context.Background(), rt.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, stored.GroupIDs())
}
