package safety

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Level is the severity tier assigned to a message. Levels are ordered:
// GREEN < YELLOW < ORANGE < RED.
type Level int

const (
	LevelGreen Level = iota
	LevelYellow
	LevelOrange
	LevelRed
)

var levelNames = map[Level]string{
	LevelGreen:  "GREEN",
	LevelYellow: "YELLOW",
	LevelOrange: "ORANGE",
	LevelRed:    "RED",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GREEN":
		return LevelGreen, nil
	case "YELLOW":
		return LevelYellow, nil
	case "ORANGE":
		return LevelOrange, nil
	case "RED":
		return LevelRed, nil
	}
	return LevelGreen, fmt.Errorf("unknown safety level %q", s)
}

// MarshalJSON encodes the level as its name
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalYAML decodes a level name from the registry file
func (l *Level) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Role identifies who is talking to the assistant.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleCaregiver:
		return RoleCaregiver, nil
	}
	return "", fmt.Errorf("unknown user role %q", s)
}
