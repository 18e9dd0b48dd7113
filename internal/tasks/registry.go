package tasks

import (
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// Registry holds tasks by name in declaration order.
type Registry struct {
	byName map[string]Task
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Task)}
}

// Add registers t. Names are unique.
func (r *Registry) Add(t Task) error {
	if _, dup := r.byName[t.Name()]; dup {
		return ferrors.ValidationError("duplicate task").WithContext("task", t.Name()).Build()
	}
	r.byName[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns task names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns tasks in declaration order.
func (r *Registry) All() []Task {
	out := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
