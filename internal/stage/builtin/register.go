// Package builtin holds the compiled-in stage catalogue. User catalogues
// loaded from Starlark files extend it; both go through the same registry.
package builtin

import "github.com/stagepath/stagepath/internal/stage"

// RegisterAll adds all built-in stages to the registry.
func RegisterAll(r *stage.Registry) error {
	for _, s := range []*stage.Stage{
		trim(),
		dedup(),
		filter(),
		correct(),
		assemble(),
		index(),
		mapReads(),
		coverage(),
	} {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
