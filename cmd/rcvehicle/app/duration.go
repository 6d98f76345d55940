package app

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeDuration is a time.Duration written as a Go duration string in configuration files
type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Positive returns an error if the duration is not greater than zero
func (d TimeDuration) Positive(field string) error {
	if d <= 0 {
		return NewConfigError(field, "must be positive, %s given", d)
	}
	return nil
}

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}
