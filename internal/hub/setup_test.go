package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zberg/go-melco/pkg/melco"
)

func TestSetupController(t *testing.T) {
	st := openTestStore(t)
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "1", Name: "Lobby"}, {Group: "2"}}

	entry, err := SetupController(context.Background(), st, "10.0.0.5", fake)
	require.NoError(t, err)
	assert.Equal(t, "Mitsubishi AC (10.0.0.5)", entry.Title)
	assert.Equal(t, map[string]string{"1": "Lobby", "2": "AC Group 2"}, entry.Groups)

	stored, err := st.GetByHost(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, stored.ID)
}

func TestSetupController_AlreadyConfigured(t *testing.T) {
	st := openTestStore(t)
	fake := newFakeController()
	fake.groups = []melco.GroupDescriptor{{Group: "1"}}

	_, err := SetupController(context.Background(), st, "10.0.0.5", fake)
	require.NoError(t, err)

	fake.groupErr = errors.New("must not be called")
	_, err = SetupController(context.Background(), st, "10.0.0.5", fake)
	assert.ErrorIs(t, err, ErrAlreadyConfigured)
	assert.Equal(t, ReasonAlreadyConfigured, SetupReason(err))
}

func TestSetupController_NoGroups(t *testing.T) {
	st := openTestStore(t)
	_, err := SetupController(context.Background(), st, "10.0.0.5", newFakeController())
	assert.ErrorIs(t, err, ErrNoGroups)
	assert.Equal(t, ReasonNoGroups, SetupReason(err))

	entries, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetupController_CannotConnect(t *testing.T) {
	st := openTestStore(t)
	fake := newFakeController()
	cause := &melco.TransportError{Op: "getRequest", Err: errors.New("no route to host")}
	fake.groupErr = cause

	_, err := SetupController(context.Background(), st, "10.0.0.5", fake)
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ReasonCannotConnect, SetupReason(err))
}

func TestSetupReason_Unknown(t *testing.T) {
	assert.Equal(t, ReasonUnknown, SetupReason(errors.New("disk full")))
}
