package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlexBool is a boolean that accepts YAML booleans, numbers and strings such as
// "on"/"off" or "yes"/"no", which show up when values are templated from env files.
type FlexBool bool

// Bool returns the plain boolean value.
func (fb FlexBool) Bool() bool {
	return bool(fb)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for FlexBool.
func (fb *FlexBool) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		*fb = FlexBool(b)
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("cannot unmarshal %q into FlexBool: %w", value.Value, err)
		}
		*fb = FlexBool(f != 0)
	case "!!str":
		b, err := parseFlexBool(value.Value)
		if err != nil {
			return err
		}
		*fb = FlexBool(b)
	default:
		return fmt.Errorf("cannot unmarshal %s into FlexBool", value.Tag)
	}
	return nil
}

func parseFlexBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n", "":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("cannot unmarshal string %q into FlexBool", s)
	}
	return b, nil
}
