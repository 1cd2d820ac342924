package thermostat

import "strings"

// Mode is a thermostat operating mode as named by the Netatmo API
type Mode string

const (
	ModeHome   Mode = "home"   // follow the schedule
	ModeManual Mode = "manual" // hold a setpoint
	ModeMax    Mode = "max"    // boost
	ModeHG     Mode = "hg"     // frost guard, i.e. off
)

// SafeTemperature is applied when a manual setpoint is required and none is known
const SafeTemperature = 18.0

var userModes = map[string]Mode{
	"AUTO":   ModeHome,
	"MANUAL": ModeManual,
	"BOOST":  ModeMax,
	"OFF":    ModeHG,
}

// ParseUserMode converts a bus payload (AUTO, MANUAL, BOOST, OFF) into a Mode
func ParseUserMode(s string) (Mode, bool) {
	mode, ok := userModes[strings.ToUpper(strings.TrimSpace(s))]
	return mode, ok
}

// ParseMode converts an API mode name into a Mode
func ParseMode(s string) (Mode, bool) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeHome, ModeManual, ModeMax, ModeHG:
		return mode, true
	default:
		return "", false
	}
}

// UserName returns the name published on the bus
func (m Mode) UserName() string {
	for name, mode := range userModes {
		if mode == m {
			return name
		}
	}
	return strings.ToUpper(string(m))
}

// isOff reports whether a boost request from this mode needs the manual hop
func isOff(m *Mode) bool {
	return m == nil || *m == ModeHG
}
