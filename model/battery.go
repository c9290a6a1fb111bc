package model

import (
	"fmt"
	"strings"
)

// BatteryState is the reported power source state of a node.
type BatteryState int

const (
	BatteryUnknown BatteryState = iota
	BatteryCharging
	BatteryDischarging
	BatteryFull
)

// Valid reports whether s is one of the declared states.
func (s BatteryState) Valid() bool {
	switch s {
	case BatteryUnknown, BatteryCharging, BatteryDischarging, BatteryFull:
		return true
	}
	return false
}

func (s BatteryState) String() string {
	switch s {
	case BatteryCharging:
		return "charging"
	case BatteryDischarging:
		return "discharging"
	case BatteryFull:
		return "full"
	case BatteryUnknown:
		return "unknown"
	}
	return fmt.Sprintf("BatteryState(%d)", int(s))
}

// ParseBatteryState maps the textual form back to a BatteryState. Empty text
// is BatteryUnknown; anything unrecognised is an error.
func ParseBatteryState(s string) (BatteryState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return BatteryCharging, nil
	case "discharging":
		return BatteryDischarging, nil
	case "full":
		return BatteryFull, nil
	case "unknown", "":
		return BatteryUnknown, nil
	}
	return BatteryUnknown, fmt.Errorf("unknown battery state %q", s)
}

func (s BatteryState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown battery state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *BatteryState) UnmarshalText(text []byte) error {
	v, err := ParseBatteryState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
