// Package check implements the monitoring-plugin contract: one get or set
// call against a controller mapped to an OK/WARNING/CRITICAL status.
package check

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zberg/go-melco/pkg/melco"
)

// Method is one of GetTemp, GetSetTemp, GetState, GetMode, SetTemp,
// SetState or SetMode. The set of implementations is closed.
type Method interface {
	// Name returns the command-line spelling, e.g. GETTEMP.
	Name() string
	isMethod()
}

type (
	// GetTemp reads the sensed inlet temperature.
	GetTemp struct{}
	// GetSetTemp reads the target temperature.
	GetSetTemp struct{}
	// GetState reads the drive state.
	GetState struct{}
	// GetMode reads the operating mode.
	GetMode struct{}
	// SetTemp writes the target temperature.
	SetTemp struct{ Celsius float64 }
	// SetState writes the drive state.
	SetState struct{ Drive melco.Drive }
	// SetMode writes the operating mode.
	SetMode struct{ Mode melco.Mode }
)

func (GetTemp) Name() string    { return "GETTEMP" }
func (GetSetTemp) Name() string { return "GETSETTEMP" }
func (GetState) Name() string   { return "GETSTATE" }
func (GetMode) Name() string    { return "GETMODE" }
func (SetTemp) Name() string    { return "SETTEMP" }
func (SetState) Name() string   { return "SETSTATE" }
func (SetMode) Name() string    { return "SETMODE" }

func (GetTemp) isMethod()    {}
func (GetSetTemp) isMethod() {}
func (GetState) isMethod()   {}
func (GetMode) isMethod()    {}
func (SetTemp) isMethod()    {}
func (SetState) isMethod()   {}
func (SetMode) isMethod()    {}

// MethodNames lists the accepted spellings in help order.
var MethodNames = []string{"GETTEMP", "GETSETTEMP", "GETSTATE", "GETMODE", "SETTEMP", "SETSTATE", "SETMODE"}

// ParseMethod resolves a method name, case-insensitively. Set methods take
// their value from param, which is validated here so that a bad invocation
// fails before any request is made.
func ParseMethod(name, param string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "GETTEMP":
		return GetTemp{}, nil
	case "GETSETTEMP":
		return GetSetTemp{}, nil
	case "GETSTATE":
		return GetState{}, nil
	case "GETMODE":
		return GetMode{}, nil
	case "SETTEMP":
		if param == "" {
			return nil, fmt.Errorf("SETTEMP requires a temperature parameter")
		}
		celsius, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return nil, &melco.ValidationError{Field: "temperature", Value: param, Reason: "not a number"}
		}
		return SetTemp{Celsius: celsius}, nil
	case "SETSTATE":
		if param == "" {
			return nil, fmt.Errorf("SETSTATE requires ON or OFF")
		}
		drive, err := melco.ParseDrive(param)
		if err != nil {
			return nil, err
		}
		return SetState{Drive: drive}, nil
	case "SETMODE":
		if param == "" {
			return nil, fmt.Errorf("SETMODE requires a mode parameter")
		}
		mode, err := melco.ParseMode(param)
		if err != nil {
			return nil, err
		}
		return SetMode{Mode: mode}, nil
	default:
		return nil, fmt.Errorf("unknown method %q: must be one of %s", name, strings.Join(MethodNames, ", "))
	}
}

// Attribute returns the attribute a read method reports. Set methods
// return "".
func Attribute(m Method) string {
	switch m.(type) {
	case GetTemp:
		return melco.AttrInletTemp
	case GetSetTemp:
		return melco.AttrSetTemp
	case GetState:
		return melco.AttrDrive
	case GetMode:
		return melco.AttrMode
	default:
		return ""
	}
}
