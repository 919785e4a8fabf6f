package hub

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/zberg/go-melco/pkg/melco"
)

// HVACMode is the host-facing operating mode of a climate entity.
type HVACMode string

const (
	HVACOff      HVACMode = "off"
	HVACCool     HVACMode = "cool"
	HVACHeat     HVACMode = "heat"
	HVACDry      HVACMode = "dry"
	HVACFanOnly  HVACMode = "fan_only"
	HVACHeatCool HVACMode = "heat_cool"
)

// HVACModes lists the supported modes in display order.
var HVACModes = []HVACMode{HVACOff, HVACCool, HVACHeat, HVACDry, HVACFanOnly, HVACHeatCool}

// Target temperature limits in °C.
const (
	MinTemp  = 16.0
	MaxTemp  = 31.0
	TempStep = 0.5
)

var hvacToController = map[HVACMode]melco.Mode{
	HVACCool:     melco.ModeCool,
	HVACHeat:     melco.ModeHeat,
	HVACDry:      melco.ModeDry,
	HVACFanOnly:  melco.ModeFan,
	HVACHeatCool: melco.ModeAuto,
}

// ParseHVACMode validates a host-facing mode name.
func ParseHVACMode(s string) (HVACMode, error) {
	for _, m := range HVACModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &melco.ValidationError{Field: "hvac_mode", Value: s, Reason: "unsupported mode"}
}

// HVACModeOf maps a group state to its host-facing mode. A group that is
// off is HVACOff whatever its mode; unrecognised modes map to heat_cool.
func HVACModeOf(state melco.GroupState) HVACMode {
	if !state.On() {
		return HVACOff
	}
	switch state.Mode {
	case melco.ModeCool:
		return HVACCool
	case melco.ModeHeat:
		return HVACHeat
	case melco.ModeDry:
		return HVACDry
	case melco.ModeFan:
		return HVACFanOnly
	default:
		return HVACHeatCool
	}
}

// Commander sends set operations to a controller. *melco.Client implements it.
type Commander interface {
	SetDrive(ctx context.Context, group string, drive melco.Drive) error
	SetMode(ctx context.Context, group string, mode melco.Mode) error
	SetTemperature(ctx context.Context, group string, celsius float64) error
}

// Climate exposes one group as a climate entity backed by a coordinator.
type Climate struct {
	UniqueID string
	Name     string
	Group    string

	cmd   Commander
	coord *Coordinator
}

// NewClimate creates the entity for group on the controller identified by entryID.
func NewClimate(entryID, group, name string, cmd Commander, coord *Coordinator) *Climate {
	return &Climate{
		UniqueID: fmt.Sprintf("%s_%s", entryID, group),
		Name:     name,
		Group:    group,
		cmd:      cmd,
		coord:    coord,
	}
}

// ClimateState is the entity's view of the last snapshot.
type ClimateState struct {
	UniqueID           string     `json:"unique_id"`
	Name               string     `json:"name"`
	Group              string     `json:"group"`
	Available          bool       `json:"available"`
	Stale              bool       `json:"stale,omitempty"`
	HVACMode           HVACMode   `json:"hvac_mode,omitempty"`
	HVACModes          []HVACMode `json:"hvac_modes"`
	ControllerMode     string     `json:"controller_mode,omitempty"`
	Drive              string     `json:"drive,omitempty"`
	CurrentTemperature *float64   `json:"current_temperature,omitempty"`
	TargetTemperature  *float64   `json:"target_temperature,omitempty"`
	MinTemp            float64    `json:"min_temp"`
	MaxTemp            float64    `json:"max_temp"`
	TargetTempStep     float64    `json:"target_temp_step"`
}

// State reads the entity from the coordinator's last good snapshot. The
// entity is unavailable until a cycle has succeeded or while the last cycle
// failed.
func (c *Climate) State() ClimateState {
	out := ClimateState{
		UniqueID:       c.UniqueID,
		Name:           c.Name,
		Group:          c.Group,
		HVACModes:      HVACModes,
		MinTemp:        MinTemp,
		MaxTemp:        MaxTemp,
		TargetTempStep: TempStep,
	}
	snap, ok := c.coord.Snapshot()
	if !ok {
		return out
	}
	state, ok := snap.States[c.Group]
	if !ok {
		return out
	}
	_, out.Stale = snap.Stale[c.Group]
	out.Available = c.coord.LastUpdateSuccess()
	out.HVACMode = HVACModeOf(state)
	out.ControllerMode = string(state.Mode)
	out.Drive = string(state.Drive)
	out.CurrentTemperature = state.InletTemp
	out.TargetTemperature = state.SetTemp
	return out
}

// SetHVACMode switches the group off, or on into the matching controller mode.
func (c *Climate) SetHVACMode(ctx context.Context, mode HVACMode) error {
	if mode == HVACOff {
		return c.TurnOff(ctx)
	}
	target, ok := hvacToController[mode]
	if !ok {
		return &melco.ValidationError{Field: "hvac_mode", Value: string(mode), Reason: "unsupported mode"}
	}

	if state, known := c.coord.State(c.Group); !known || !state.On() {
		if err := c.cmd.SetDrive(ctx, c.Group, melco.DriveOn); err != nil {
			return err
		}
	}
	if err := c.cmd.SetMode(ctx, c.Group, target); err != nil {
		return err
	}
	log.Info().Str("entity", c.UniqueID).Str("hvac_mode", string(mode)).Msg("HVAC mode set")
	c.coord.RequestRefresh(ctx)
	return nil
}

// SetTemperature sets the target temperature. Values outside MinTemp..MaxTemp
// or off the TempStep grid are rejected.
func (c *Climate) SetTemperature(ctx context.Context, celsius float64) error {
	if err := validateTarget(celsius); err != nil {
		return err
	}
	if err := c.cmd.SetTemperature(ctx, c.Group, celsius); err != nil {
		return err
	}
	log.Info().Str("entity", c.UniqueID).Float64("temperature", celsius).Msg("Target temperature set")
	c.coord.RequestRefresh(ctx)
	return nil
}

// TurnOn switches the group on, keeping its current mode.
func (c *Climate) TurnOn(ctx context.Context) error {
	return c.setDrive(ctx, melco.DriveOn)
}

// TurnOff switches the group off.
func (c *Climate) TurnOff(ctx context.Context) error {
	return c.setDrive(ctx, melco.DriveOff)
}

func (c *Climate) setDrive(ctx context.Context, drive melco.Drive) error {
	if err := c.cmd.SetDrive(ctx, c.Group, drive); err != nil {
		return err
	}
	log.Info().Str("entity", c.UniqueID).Str("drive", string(drive)).Msg("Drive set")
	c.coord.RequestRefresh(ctx)
	return nil
}

func validateTarget(celsius float64) error {
	value := fmt.Sprintf("%g", celsius)
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return &melco.ValidationError{Field: "temperature", Value: value, Reason: "not a finite number"}
	}
	if celsius < MinTemp || celsius > MaxTemp {
		return &melco.ValidationError{Field: "temperature", Value: value, Reason: fmt.Sprintf("outside %g..%g", MinTemp, MaxTemp)}
	}
	if steps := celsius / TempStep; steps != math.Trunc(steps) {
		return &melco.ValidationError{Field: "temperature", Value: value, Reason: fmt.Sprintf("not a multiple of %g", TempStep)}
	}
	return nil
}
