// Package payload assembles the canonical execution request accepted by the
// task engine.
package payload

import (
	"encoding/json"
	"fmt"

	"github.com/taskgate/taskgate/internal/fault"
)

// Request is the execution request. Name is always present; Config only when
// non-empty; Environment only when at least one of its parts is non-empty, so
// no meaningless empty structures go over the wire.
type Request struct {
	Name        string            `json:"name"`
	Config      map[string]string `json:"config,omitempty"`
	Environment *Environment      `json:"environment,omitempty"`
}

// Environment carries the per-task environment: App holds arbitrary
// application values, CGI holds server variables.
type Environment struct {
	App map[string]any    `json:"app,omitempty"`
	CGI map[string]string `json:"cgi,omitempty"`
}

// Build assembles and serializes an execution request. It is a pure function
// of its inputs. The caller boundary is responsible for shape validation of
// the maps; Build only enforces the presence rules and fails with
// fault.ErrInvalidArgument on an empty name or fault.ErrEncodingFailed when a
// value cannot be serialized. It never emits a partial payload.
func Build(name string, config map[string]string, app map[string]any, server map[string]string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", fault.ErrInvalidArgument)
	}

	req := Request{Name: name}
	if len(config) > 0 {
		req.Config = config
	}
	if len(app) > 0 || len(server) > 0 {
		req.Environment = &Environment{}
		if len(app) > 0 {
			req.Environment.App = app
		}
		if len(server) > 0 {
			req.Environment.CGI = server
		}
	}

	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrEncodingFailed, err)
	}
	return buf, nil
}

// Decode parses a serialized execution request. The engine side uses it to
// recover the request built by Build; malformed input fails with
// fault.ErrDecodingFailed.
func Decode(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrDecodingFailed, err)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: payload has no name", fault.ErrDecodingFailed)
	}
	return &req, nil
}
