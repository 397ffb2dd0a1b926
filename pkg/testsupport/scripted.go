package testsupport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/remote"
)

type script struct {
	scoped   json.RawMessage
	unscoped json.RawMessage
	err      error
}

// ScriptedAPI is a fake analytics API. Each operation answers with a fixed
// payload, optionally different for store scoped requests, or a fixed error.
type ScriptedAPI struct {
	mu      sync.Mutex
	scripts map[string]script
	calls   map[string]int
}

func NewScriptedAPI() *ScriptedAPI {
	return &ScriptedAPI{
		scripts: make(map[string]script),
		calls:   make(map[string]int),
	}
}

// Respond answers every request to name with payload.
func (s *ScriptedAPI) Respond(name string, payload json.RawMessage) *ScriptedAPI {
	return s.RespondScoped(name, payload, payload)
}

// RespondScoped answers requests that carry a store_name with scoped and all
// other requests with unscoped.
func (s *ScriptedAPI) RespondScoped(name string, scoped, unscoped json.RawMessage) *ScriptedAPI {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[name] = script{scoped: scoped, unscoped: unscoped}
	return s
}

// Fail answers every request to name with err.
func (s *ScriptedAPI) Fail(name string, err error) *ScriptedAPI {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[name] = script{err: err}
	return s
}

// Calls returns the number of requests made to name.
func (s *ScriptedAPI) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// Operation returns the operation serving name. Unscripted names answer with
// an empty array.
func (s *ScriptedAPI) Operation(name string) remote.Operation {
	return func(ctx context.Context, params cache.Params) (*remote.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.calls[name]++
		sc, ok := s.scripts[name]
		s.mu.Unlock()

		switch {
		case !ok:
			return &remote.Response{Data: json.RawMessage(`[]`), Status: http.StatusOK}, nil
		case sc.err != nil:
			return nil, sc.err
		case params.Normalize().StoreName() != "":
			return &remote.Response{Data: sc.scoped, Status: http.StatusOK}, nil
		default:
			return &remote.Response{Data: sc.unscoped, Status: http.StatusOK}, nil
		}
	}
}

// Registry registers every known analytics endpoint against the script.
func (s *ScriptedAPI) Registry() *remote.Registry {
	registry := remote.NewRegistry()
	for _, ep := range remote.Endpoints {
		registry.Register(ep.Name, ep.Dataset, s.Operation(ep.Name))
	}
	return registry
}
