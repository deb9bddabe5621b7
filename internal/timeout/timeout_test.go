package timeout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/taskgate/taskgate/internal/fault"
)

func TestParseStringRoundTrip(t *testing.T) {
	// parse(serialize(ms)) == ms for ms, s, m, h units.
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"5s", 5 * time.Second},
		{"3m", 3 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1h30m", 90 * time.Minute},
		{"1.5s", 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := ParseString(tt.input)
		if err != nil {
			t.Errorf("ParseString(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseString(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if got != time.Duration(got.Milliseconds())*time.Millisecond {
			t.Errorf("ParseString(%q) = %v, not millisecond-granular", tt.input, got)
		}
	}
}

func TestParseStringInvalid(t *testing.T) {
	tests := []string{
		"-anything-unparseable-",
		"",
		"five seconds",
		"12",      // bare number strings carry no unit
		"100us",   // below millisecond resolution
		"0s",      // sub-millisecond; integer zero is the unbounded form
	}
	for _, input := range tests {
		_, err := ParseString(input)
		if !errors.Is(err, fault.ErrInvalidDuration) {
			t.Errorf("ParseString(%q) error = %v, want ErrInvalidDuration", input, err)
		}
	}
}

func TestFromMillis(t *testing.T) {
	got, err := FromMillis(1500)
	if err != nil {
		t.Fatalf("FromMillis(1500) error: %v", err)
	}
	if got != 1500*time.Millisecond {
		t.Errorf("FromMillis(1500) = %v, want 1.5s", got)
	}

	got, err = FromMillis(0)
	if err != nil {
		t.Fatalf("FromMillis(0) error: %v", err)
	}
	if got != None {
		t.Errorf("FromMillis(0) = %v, want unbounded", got)
	}

	if _, err := FromMillis(-1); !errors.Is(err, fault.ErrInvalidDuration) {
		t.Errorf("FromMillis(-1) error = %v, want ErrInvalidDuration", err)
	}
}

func TestMillisUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{`5000`, 5 * time.Second},
		{`"5s"`, 5 * time.Second},
		{`0`, None},
		{`null`, None},
	}
	for _, tt := range tests {
		var m Millis
		if err := json.Unmarshal([]byte(tt.input), &m); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.input, err)
			continue
		}
		if m.Duration != tt.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, m.Duration, tt.want)
		}
	}
}

func TestMillisUnmarshalInvalid(t *testing.T) {
	tests := []string{`"nope"`, `-5`, `true`, `[1]`, `{"ms":1}`}
	for _, input := range tests {
		var m Millis
		err := json.Unmarshal([]byte(input), &m)
		if !errors.Is(err, fault.ErrInvalidDuration) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidDuration", input, err)
		}
	}
}

func TestContextUnbounded(t *testing.T) {
	parent := context.Background()
	ctx, cancel := Context(parent, None)
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("unbounded budget produced a deadline")
	}
	if ctx != parent {
		t.Error("unbounded budget should return the parent context unchanged")
	}
}

func TestContextBounded(t *testing.T) {
	ctx, cancel := Context(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("bounded budget produced no deadline")
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not expire")
	}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctx.Err())
	}
}
