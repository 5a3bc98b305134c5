package engine

import (
	"fmt"
	"sort"

	"github.com/roach88/arbor/bt"
)

// LeafFactory builds a leaf callback from its node's params.
//
// Factories run at build time, once per leaf node, so param problems surface
// as build errors and never at tick time. The returned TickFunc owns any
// per-node state through its closure (each node gets its own callback).
type LeafFactory func(params map[string]any) (bt.TickFunc, error)

// Registry maps leaf implementation names to factories.
//
// Tree definitions reference leaves by name (the node's leaf field); Build
// resolves those names here. Register everything before Build; the registry
// is not synchronized and is meant to be populated once at startup.
type Registry struct {
	factories map[string]LeafFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]LeafFactory)}
}

// Register adds a factory under name. Registering a duplicate or empty name
// is an error; shadowing a leaf silently would change tree behavior.
func (r *Registry) Register(name string, factory LeafFactory) error {
	if name == "" {
		return fmt.Errorf("register leaf: name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("register leaf %q: factory must not be nil", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("register leaf %q: already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error. For static registration
// blocks where a failure is a programming mistake.
func (r *Registry) MustRegister(name string, factory LeafFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the factory registered under name.
func (r *Registry) Resolve(name string) (LeafFactory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered leaf names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the builtin leaves registered.
//
// Builtins:
//   - succeed, fail, error, running: constant statuses, no params
//   - counter: Running for ticks-1 calls per episode, then Success and reset
//   - flag: Success if the blackboard key is true, Failure otherwise
//   - set: writes a blackboard key, returns Success
//
// flag and set expect Node.Blackboard to hold a *bt.Blackboard; any other
// value makes them return Error at tick time.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("succeed", constantLeaf(bt.StatusSuccess))
	r.MustRegister("fail", constantLeaf(bt.StatusFailure))
	r.MustRegister("error", constantLeaf(bt.StatusError))
	r.MustRegister("running", constantLeaf(bt.StatusRunning))
	r.MustRegister("counter", counterLeaf)
	r.MustRegister("flag", flagLeaf)
	r.MustRegister("set", setLeaf)
	return r
}

// constantLeaf returns a factory whose callback always reports status.
func constantLeaf(status bt.Status) LeafFactory {
	return func(params map[string]any) (bt.TickFunc, error) {
		return func(*bt.Node) bt.Status { return status }, nil
	}
}

// counterLeaf models work that needs a fixed number of ticks. With
// ticks: 3 the callback returns Running, Running, Success, then starts
// over, so the leaf is reusable across episodes.
func counterLeaf(params map[string]any) (bt.TickFunc, error) {
	ticks, err := intParam(params, "ticks")
	if err != nil {
		return nil, err
	}
	if ticks < 1 {
		return nil, fmt.Errorf("param \"ticks\" must be >= 1, got %d", ticks)
	}

	remaining := ticks
	return func(*bt.Node) bt.Status {
		if remaining > 1 {
			remaining--
			return bt.StatusRunning
		}
		remaining = ticks
		return bt.StatusSuccess
	}, nil
}

// flagLeaf tests a blackboard key. Only a stored true succeeds; a missing
// key or any non-true value is an ordinary Failure, not a fault.
func flagLeaf(params map[string]any) (bt.TickFunc, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}

	return func(n *bt.Node) bt.Status {
		board, ok := n.Blackboard.(*bt.Blackboard)
		if !ok {
			return bt.StatusError
		}
		v, ok := board.Get(key)
		if !ok {
			return bt.StatusFailure
		}
		if b, ok := v.(bool); ok && b {
			return bt.StatusSuccess
		}
		return bt.StatusFailure
	}, nil
}

// setLeaf writes a fixed value to a blackboard key.
func setLeaf(params map[string]any) (bt.TickFunc, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	value, ok := params["value"]
	if !ok {
		return nil, fmt.Errorf("missing required param %q", "value")
	}

	return func(n *bt.Node) bt.Status {
		board, ok := n.Blackboard.(*bt.Blackboard)
		if !ok {
			return bt.StatusError
		}
		board.Set(key, value)
		return bt.StatusSuccess
	}, nil
}

// stringParam extracts a required non-empty string param.
func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing required param %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string, got %T", name, v)
	}
	if s == "" {
		return "", fmt.Errorf("param %q must not be empty", name)
	}
	return s, nil
}

// intParam extracts a required integer param. Compiled params carry int64;
// int is accepted for specs assembled in Go.
func intParam(params map[string]any, name string) (int64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("missing required param %q", name)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("param %q must be an integer, got %T", name, v)
	}
}
