// Package timeout implements the wait-budget contract: a timeout is either a
// raw integer count of milliseconds or a compact duration string ("1h30m",
// "250ms"). Zero or absent means wait indefinitely.
package timeout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskgate/taskgate/internal/fault"
)

// None is the unbounded wait budget.
const None = time.Duration(0)

// ParseString converts a compact duration string to a millisecond-granular
// duration. Strings that do not parse, or that parse below one millisecond,
// fail with fault.ErrInvalidDuration; the value is never clamped.
func ParseString(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", fault.ErrInvalidDuration, s)
	}
	if d < time.Millisecond {
		return 0, fmt.Errorf("%w: %q is below millisecond resolution", fault.ErrInvalidDuration, s)
	}
	return d.Truncate(time.Millisecond), nil
}

// FromMillis converts a raw millisecond count. Zero means unbounded; negative
// values fail with fault.ErrInvalidDuration.
func FromMillis(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("%w: %d", fault.ErrInvalidDuration, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Millis is a JSON-decodable timeout accepting either a number (milliseconds)
// or a duration string. The zero value means wait indefinitely.
type Millis struct {
	Duration time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", fault.ErrInvalidDuration, data)
	}

	switch v := raw.(type) {
	case nil:
		m.Duration = None
		return nil
	case float64:
		d, err := FromMillis(int64(v))
		if err != nil {
			return err
		}
		m.Duration = d
		return nil
	case string:
		d, err := ParseString(v)
		if err != nil {
			return err
		}
		m.Duration = d
		return nil
	default:
		return fmt.Errorf("%w: timeout must be a number or duration string", fault.ErrInvalidDuration)
	}
}

// MarshalJSON implements json.Marshaler, emitting milliseconds.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Duration.Milliseconds())
}

// Context derives a deadline-bearing context from parent when the budget is
// bounded; with no budget it returns parent unchanged.
func Context(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= None {
		return parent, func() {}
	}
	return context.WithTimeout(parent, d)
}
