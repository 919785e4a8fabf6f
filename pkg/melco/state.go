package melco

import (
	"math"
	"strconv"
	"strings"
)

// Mnet attribute names.
const (
	AttrGroup        = "Group"
	AttrDrive        = "Drive"
	AttrMode         = "Mode"
	AttrSetTemp      = "SetTemp"
	AttrInletTemp    = "InletTemp"
	AttrGroupName    = "GroupName"
	AttrGroupNameWeb = "GroupNameWeb"
)

// stateAttributes are requested by GetGroupState, in this order.
var stateAttributes = []string{AttrDrive, AttrMode, AttrSetTemp, AttrInletTemp}

// Drive is the on/off power state of a group.
type Drive string

const (
	DriveOn  Drive = "ON"
	DriveOff Drive = "OFF"
)

// Valid reports whether d is ON or OFF.
func (d Drive) Valid() bool {
	return d == DriveOn || d == DriveOff
}

// Mode is the operating mode of a group.
type Mode string

const (
	ModeCool         Mode = "COOL"
	ModeDry          Mode = "DRY"
	ModeFan          Mode = "FAN"
	ModeHeat         Mode = "HEAT"
	ModeAuto         Mode = "AUTO"
	ModeHeatRecovery Mode = "HEATRECOVERY"
	ModeLCAuto       Mode = "LC_AUTO"
	ModeBypass       Mode = "BYPASS"
	ModeAutoHeat     Mode = "AUTOHEAT"
	ModeAutoCool     Mode = "AUTOCOOL"
)

// Modes lists every mode the controller reports.
var Modes = []Mode{
	ModeCool, ModeDry, ModeFan, ModeHeat, ModeAuto,
	ModeHeatRecovery, ModeLCAuto, ModeBypass, ModeAutoHeat, ModeAutoCool,
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// ParseDrive accepts ON/OFF in any case.
func ParseDrive(s string) (Drive, error) {
	d := Drive(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", &ValidationError{Field: "drive", Value: s, Reason: "must be ON or OFF"}
	}
	return d, nil
}

// ParseMode accepts any of Modes in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &ValidationError{Field: "mode", Value: s, Reason: "unknown mode"}
	}
	return m, nil
}

// GroupState is a snapshot of one group's reported attributes. A new value
// is built from every poll response; nothing is merged between polls.
type GroupState struct {
	Group     string
	Drive     Drive
	Mode      Mode
	SetTemp   *float64 // nil when absent or unparsable
	InletTemp *float64 // nil when absent or unparsable
}

// NewGroupState maps response attributes to a GroupState. Drive defaults to
// OFF and Mode to AUTO when the controller leaves them out.
func NewGroupState(group string, attrs map[string]string) GroupState {
	state := GroupState{
		Group:     group,
		Drive:     DriveOff,
		Mode:      ModeAuto,
		SetTemp:   parseTemperature(attrs[AttrSetTemp]),
		InletTemp: parseTemperature(attrs[AttrInletTemp]),
	}
	if v, ok := attrs[AttrDrive]; ok {
		state.Drive = Drive(v)
	}
	if v, ok := attrs[AttrMode]; ok {
		state.Mode = Mode(v)
	}
	return state
}

// On reports whether the group is running.
func (s GroupState) On() bool {
	return s.Drive == DriveOn
}

func parseTemperature(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// GroupDescriptor names a group found by DiscoverGroups.
type GroupDescriptor struct {
	Group string
	Name  string
}

func validateGroup(group string) error {
	if strings.TrimSpace(group) == "" {
		return &ValidationError{Field: "group", Value: group, Reason: "must not be empty"}
	}
	return nil
}
