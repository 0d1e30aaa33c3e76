package tasks

import (
	"context"
	"fmt"
)

// Param is a named, optional string argument of a task.
type Param struct {
	Name    string
	Default string
	Help    string
}

// Args holds the resolved parameter values of one invocation.
type Args map[string]string

// Descriptor defines a task. Descriptors are built once at start-up and never
// change afterwards.
type Descriptor struct {
	Name    string
	Aliases []string
	Short   string
	Long    string
	Params  []Param
	// Positional names the parameter that may also be given as the single
	// positional argument.
	Positional string
	Run        func(ctx context.Context, args Args) error
}

// Registry maps task names to descriptors, keeping registration order.
type Registry struct {
	tasks map[string]Descriptor
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tasks: map[string]Descriptor{}}
}

// Register adds d. It panics if the name is taken.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.tasks[d.Name]; exists {
		panic(fmt.Sprintf("task %s already registered", d.Name))
	}
	r.tasks[d.Name] = d
	r.order = append(r.order, d.Name)
}

// Get returns the task registered under name or one of its aliases.
func (r *Registry) Get(name string) (Descriptor, error) {
	if d, ok := r.tasks[name]; ok {
		return d, nil
	}
	for _, n := range r.order {
		for _, a := range r.tasks[n].Aliases {
			if a == name {
				return r.tasks[n], nil
			}
		}
	}
	return Descriptor{}, fmt.Errorf("task not registered: %s", name)
}

// All returns the descriptors in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tasks[n])
	}
	return out
}

// Invoke runs the task with args layered over the declared defaults.
// Unknown argument names are rejected.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) error {
	d, err := r.Get(name)
	if err != nil {
		return err
	}
	resolved := Args{}
	for _, p := range d.Params {
		resolved[p.Name] = p.Default
	}
	for k, v := range args {
		if _, ok := resolved[k]; !ok {
			return fmt.Errorf("task %s: unknown argument %q", d.Name, k)
		}
		resolved[k] = v
	}
	return d.Run(ctx, resolved)
}
