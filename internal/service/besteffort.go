package service

import "log"

// bestEffort is the result of a cache or rate-limiter operation that is
// allowed to fail. When degraded is true the value is meaningless and the
// caller falls back to the durable store. This fail-open policy applies only
// to auxiliary state, never to the durable insert path.
type bestEffort[T any] struct {
	value    T
	degraded bool
}

// try runs fn and swallows its error, logging it under the component name.
func try[T any](component string, fn func() (T, error)) bestEffort[T] {
	value, err := fn()
	if err != nil {
		log.Printf("%s degraded: %v", component, err)
		return bestEffort[T]{degraded: true}
	}
	return bestEffort[T]{value: value}
}

// tryVoid is try for operations with no result value.
func tryVoid(component string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("%s degraded: %v", component, err)
	}
}
