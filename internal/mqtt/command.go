package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sweeney/gpio-sensor/internal/gpio"
)

// CommandHandler drives a GPO pin in response to a bus request.
type CommandHandler func(pin int, value gpio.Status) error

// Command is the payload of a GPO write request, e.g.
// {"pin": 0, "value": "opened"}. Value may also be 0 or 1.
type Command struct {
	Pin   *int            `json:"pin"`
	Value json.RawMessage `json:"value"`
}

// ParseCommand decodes a GPO write request. Pin is the 0-based pin index.
func ParseCommand(payload []byte) (int, gpio.Status, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return 0, gpio.StatusUnknown, fmt.Errorf("decode command: %w", err)
	}
	if c.Pin == nil {
		return 0, gpio.StatusUnknown, errors.New("command: missing pin")
	}
	if *c.Pin < 0 {
		return 0, gpio.StatusUnknown, fmt.Errorf("command: invalid pin %d", *c.Pin)
	}

	raw := bytes.TrimSpace(c.Value)
	if len(raw) == 0 {
		return 0, gpio.StatusUnknown, errors.New("command: missing value")
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, gpio.StatusUnknown, fmt.Errorf("command: %w", err)
		}
	} else {
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			return 0, gpio.StatusUnknown, fmt.Errorf("command: invalid value %s", raw)
		}
		text = strconv.Itoa(n)
	}

	v, err := gpio.ParseStatus(text)
	if err != nil {
		return 0, gpio.StatusUnknown, fmt.Errorf("command: %w", err)
	}
	return *c.Pin, v, nil
}
