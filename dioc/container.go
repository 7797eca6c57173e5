// Package dioc backs loom's process-wide ServiceLocator construction with
// a dig container, generalising the teacher's hand-rolled
// reflection-based dependency injection (dependencyinjection.go's
// storeDependency / getNodeDependency / reflect.Value method calls) into
// a real constructor graph.
//
// dioc.Builder lets callers register ordinary Go constructors (functions
// returning a service and, optionally, an error) the way dig normally
// wires an application, then flushes the constructed values into a
// loom.ServiceLocator under explicit string keys — bridging dig's
// type-based resolution with the spec's string-keyed locator contract.
package dioc

import (
	"fmt"

	"go.uber.org/dig"
)

// Builder accumulates constructors and the locator keys they should be
// published under.
type Builder struct {
	c        *dig.Container
	bindings []binding
}

type binding struct {
	key       string
	extractFn func(*dig.Container) (any, error)
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{c: dig.New()}
}

// Provide registers a constructor with the underlying dig container,
// exactly as dig.Container.Provide does — used for a service's own
// dependencies (e.g. an *http.Client feeding an LLM provider
// constructor).
func (b *Builder) Provide(constructor any) error {
	return b.c.Provide(constructor)
}

// Bind registers key to be resolved from the container via an invoked
// function of shape func(T) that dig will call with the constructed
// value once Build runs.
func Bind[T any](b *Builder, key string) {
	b.bindings = append(b.bindings, binding{
		key: key,
		extractFn: func(c *dig.Container) (any, error) {
			var out T
			err := c.Invoke(func(v T) { out = v })
			if err != nil {
				return nil, fmt.Errorf("dioc: resolving %q: %w", key, err)
			}
			return out, nil
		},
	})
}

// Locator is the minimal surface Build needs from loom.ServiceLocator,
// kept narrow here so this package does not import loom — dioc stays a
// leaf dependency of cmd/loomd.
type Locator interface {
	Register(key string, svc any)
}

// Build invokes every constructor bound so far and registers the results
// into loc under their bound keys, in registration order.
func (b *Builder) Build(loc Locator) error {
	for _, bd := range b.bindings {
		val, err := bd.extractFn(b.c)
		if err != nil {
			return err
		}
		loc.Register(bd.key, val)
	}
	return nil
}
