package check

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zberg/go-melco/pkg/melco"
)

// Status is a monitoring-plugin result. Its value is the process exit code.
type Status int

const (
	StatusOK       Status = 0
	StatusWarning  Status = 1
	StatusCritical Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the process exit code for s.
func (s Status) ExitCode() int {
	return int(s)
}

// Thresholds are inclusive lower bounds, in °C.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Evaluate maps a temperature to a status: critical at or above Critical,
// otherwise warning at or above Warning, otherwise OK.
func (t Thresholds) Evaluate(temp float64) Status {
	switch {
	case temp >= t.Critical:
		return StatusCritical
	case temp >= t.Warning:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Controller is the part of *melco.Client a check needs.
type Controller interface {
	GetAttributes(ctx context.Context, group string, names ...string) (map[string]string, error)
	SetDrive(ctx context.Context, group string, drive melco.Drive) error
	SetMode(ctx context.Context, group string, mode melco.Mode) error
	SetTemperature(ctx context.Context, group string, celsius float64) error
}

// Result is what a check prints and exits with.
type Result struct {
	Status  Status
	Message string
}

// Run performs method against group and maps the outcome to a Result.
// Temperature reads are judged against th; other methods report OK once the
// controller answered. Any error is CRITICAL, with the error kind in the
// message.
func Run(ctx context.Context, c Controller, group string, method Method, th Thresholds) Result {
	switch m := method.(type) {
	case GetTemp:
		return temperature(ctx, c, group, Attribute(m), "Current temp", th)
	case GetSetTemp:
		return temperature(ctx, c, group, Attribute(m), "Set temp", th)
	case GetState:
		return value(ctx, c, group, Attribute(m), "STATE")
	case GetMode:
		return value(ctx, c, group, Attribute(m), "MODE")
	case SetTemp:
		return acknowledge(m, group, strconv.FormatFloat(m.Celsius, 'f', -1, 64), c.SetTemperature(ctx, group, m.Celsius))
	case SetState:
		return acknowledge(m, group, string(m.Drive), c.SetDrive(ctx, group, m.Drive))
	case SetMode:
		return acknowledge(m, group, string(m.Mode), c.SetMode(ctx, group, m.Mode))
	default:
		return Failed(fmt.Errorf("unsupported method %T", method))
	}
}

func temperature(ctx context.Context, c Controller, group, attr, label string, th Thresholds) Result {
	attrs, err := c.GetAttributes(ctx, group, attr)
	if err != nil {
		return Failed(err)
	}
	raw, ok := attrs[attr]
	if !ok {
		return Failed(&melco.DecodeError{Err: fmt.Errorf("no %s for group %s in response", attr, group)})
	}
	temp, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Failed(&melco.DecodeError{Err: fmt.Errorf("%s %q is not a number", attr, raw)})
	}

	status := th.Evaluate(temp)
	return Result{
		Status:  status,
		Message: fmt.Sprintf("TEMP %s: %s is %s |temp=%s", status, label, raw, raw),
	}
}

func value(ctx context.Context, c Controller, group, attr, prefix string) Result {
	attrs, err := c.GetAttributes(ctx, group, attr)
	if err != nil {
		return Failed(err)
	}
	raw, ok := attrs[attr]
	if !ok {
		return Failed(&melco.DecodeError{Err: fmt.Errorf("no %s for group %s in response", attr, group)})
	}
	return Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%s OK: %s is %s", prefix, attr, raw),
	}
}

func acknowledge(m Method, group, value string, err error) Result {
	if err != nil {
		return Failed(err)
	}
	return Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("%s OK: group %s set to %s", m.Name(), group, value),
	}
}

// Failed is the CRITICAL result for err, naming its kind.
func Failed(err error) Result {
	return Result{
		Status:  StatusCritical,
		Message: fmt.Sprintf("TEMP SCRIPT FAILED [%s]: %v", melco.KindOf(err), err),
	}
}
