// Package features detects repository conventions (CI, docs, dependency bots,
// project types) by inspecting a read-only view of a working copy.
package features

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
)

// Result is the structured output of one check. Every successful result
// carries a "present" key; a failed check carries only "error".
type Result map[string]any

// Result keys shared by every check.
const (
	KeyPresent = "present"
	KeyError   = "error"
)

// Present reports the check's "present" flag. Results without one report false.
func (r Result) Present() bool {
	present, _ := r[KeyPresent].(bool)

	return present
}

// Err returns the recorded failure message, if any.
func (r Result) Err() string {
	msg, _ := r[KeyError].(string)

	return msg
}

// FeatureMap holds results keyed by check name. A missing key means the
// check was disabled, which is distinct from a result with present=false.
type FeatureMap map[string]Result

// Target is the repository a check inspects.
type Target struct {
	// Name is the repository directory name.
	Name string
	// FS is rooted at the working copy.
	FS fs.FS
}

// Check is a single named feature detector. Detect must not modify the tree.
type Check interface {
	Name() string
	Detect(ctx context.Context, target Target) (Result, error)
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc func(ctx context.Context, target Target) (Result, error)

type namedCheck struct {
	name string
	fn   CheckFunc
}

func (c namedCheck) Name() string { return c.name }

func (c namedCheck) Detect(ctx context.Context, target Target) (Result, error) {
	return c.fn(ctx, target)
}

// NewCheck wraps fn as a Check called name.
func NewCheck(name string, fn CheckFunc) Check {
	return namedCheck{name: name, fn: fn}
}

// Registry holds checks in registration order.
type Registry struct {
	order  []string
	checks map[string]Check
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Registry{checks: make(map[string]Check), logger: logger}
}

// Register adds c. A check with an existing name replaces the old one and
// keeps its position.
func (r *Registry) Register(c Check) {
	name := c.Name()

	if _, exists := r.checks[name]; !exists {
		r.order = append(r.order, name)
	}

	r.checks[name] = c
}

// Names returns registered check names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}

// Lookup returns the check registered under name.
func (r *Registry) Lookup(name string) (Check, bool) {
	c, ok := r.checks[name]

	return c, ok
}

// Run evaluates the enabled checks in registration order. Names in enabled
// that are not registered are ignored. A failing or panicking check is
// recorded as {"error": message} and does not affect the others.
func (r *Registry) Run(ctx context.Context, target Target, enabled []string) FeatureMap {
	want := make(map[string]struct{}, len(enabled))
	for _, name := range enabled {
		want[name] = struct{}{}
	}

	results := make(FeatureMap, len(want))

	for _, name := range r.order {
		if _, ok := want[name]; !ok {
			continue
		}

		if ctx.Err() != nil {
			results[name] = Result{KeyError: ctx.Err().Error()}

			continue
		}

		res, err := r.detect(ctx, r.checks[name], target)
		if err != nil {
			r.logger.Warn("feature check failed", "check", name, "repository", target.Name, "error", err)
			results[name] = Result{KeyError: err.Error()}

			continue
		}

		results[name] = res
	}

	return results
}

func (r *Registry) detect(ctx context.Context, c Check, target Target) (res Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			res = nil
			err = fmt.Errorf("check %s panicked: %v", c.Name(), recovered)
		}
	}()

	res, err = c.Detect(ctx, target)
	if err == nil && res == nil {
		res = Result{KeyPresent: false}
	}

	return res, err
}
