// Package flow describes color flows: ordered lists of color, temperature and
// brightness change steps that a Yeelight device runs through on its own once
// started.
package flow

import (
	"math"
	"strconv"
	"strings"
)

// Action determines the state the device is left in when a flow stops
type Action int

const (
	// Recover restores the state from before the flow started
	Recover Action = 0
	// Stay keeps the state of the last transition
	Stay Action = 1
	// Off turns the device off
	Off Action = 2
)

// Mode selects what a single transition changes
type Mode int

const (
	// ModeColor transitions to an RGB color
	ModeColor Mode = 1
	// ModeTemperature transitions to a white color temperature
	ModeTemperature Mode = 2
	// ModeSleep pauses without changing anything
	ModeSleep Mode = 7
)

// minDuration is the shortest transition the device accepts, in milliseconds
const minDuration = 50

// Transition is a single step of a flow
type Transition struct {
	// Duration of the step in milliseconds, clamped to a 50ms minimum
	Duration int
	Mode     Mode
	// Value is an RGB color for ModeColor, degrees for ModeTemperature, and
	// ignored for ModeSleep
	Value int
	// Brightness to transition to (1-100), -1 to keep the current one
	Brightness int
}

// RGBTransition describes a transition to the supplied RGB color
func RGBTransition(red, green, blue uint8, duration, brightness int) Transition {
	return Transition{
		Duration:   duration,
		Mode:       ModeColor,
		Value:      RGB(red, green, blue),
		Brightness: brightness,
	}
}

// HSVTransition describes a transition to the supplied hue (0-359) and
// saturation (0-100)
func HSVTransition(hue, saturation, duration, brightness int) Transition {
	return Transition{
		Duration:   duration,
		Mode:       ModeColor,
		Value:      HSV(hue, saturation),
		Brightness: brightness,
	}
}

// TemperatureTransition describes a transition to the supplied white color
// temperature in degrees kelvin (1700-6500)
func TemperatureTransition(degrees, duration, brightness int) Transition {
	return Transition{
		Duration:   duration,
		Mode:       ModeTemperature,
		Value:      degrees,
		Brightness: brightness,
	}
}

// SleepTransition describes a pause between other transitions
func SleepTransition(duration int) Transition {
	return Transition{
		Duration: duration,
		Mode:     ModeSleep,
	}
}

// Flow is an ordered list of transitions for the device to run through
type Flow struct {
	// Count is the number of times to run through the transitions, 0 for
	// infinite
	Count int
	// Action is the state to leave the device in when the flow stops
	Action Action
	// Transitions to run through, in order
	Transitions []Transition
}

// New returns a Flow running through the supplied transitions count times
func New(count int, action Action, transitions ...Transition) *Flow {
	return &Flow{Count: count, Action: action, Transitions: transitions}
}

// Expression renders the flow's transitions in the device's flow expression
// format: duration, mode, value, brightness tuples
func (f *Flow) Expression() string {
	parts := make([]string, 0, len(f.Transitions)*4)
	for _, t := range f.Transitions {
		d := t.Duration
		if d < minDuration {
			d = minDuration
		}
		parts = append(parts,
			strconv.Itoa(d),
			strconv.Itoa(int(t.Mode)),
			strconv.Itoa(t.Value),
			strconv.Itoa(t.Brightness),
		)
	}
	return strings.Join(parts, `, `)
}

// Params returns the start_cf parameter list for this flow: the total number
// of state changes, the end action and the expression
func (f *Flow) Params() []interface{} {
	return []interface{}{f.Count * len(f.Transitions), int(f.Action), f.Expression()}
}

// RGB packs the supplied channels into the device's integer color value
func RGB(red, green, blue uint8) int {
	return int(red)*65536 + int(green)*256 + int(blue)
}

// HSV converts hue (0-359) and saturation (0-100) at full value to the
// device's integer color value
func HSV(hue, saturation int) int {
	h := float64(hue) / 359.0
	s := float64(saturation) / 100.0
	v := 1.0
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return channel(r)*65536 + channel(g)*256 + channel(b)
}

func channel(c float64) int {
	return int(math.Round(c * 255))
}
