// Package plugins holds the compiled-in worker factories.
//
// Each worker registers a Factory from an init function in its own file,
// guarded by a build tag so a build can leave a worker (and its driver
// dependencies) out. The gateway asks Compiled for the workers the loaded
// configuration enables.
package plugins

import (
	"github.com/nerrad567/btgateway/internal/infrastructure/config"
	"github.com/nerrad567/btgateway/internal/infrastructure/logging"
	"github.com/nerrad567/btgateway/internal/workers"
)

// Deps is what a factory receives to build its worker.
type Deps struct {
	Config *config.Config
	Logger *logging.Logger
}

// Factory builds a worker from the loaded config. It returns false when the
// worker is disabled or cannot be built; the factory logs the reason.
type Factory func(Deps) (workers.Worker, bool)

var compiled []Factory

// Register adds a compiled-in worker factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured worker instances for this build.
func Compiled(deps Deps) []workers.Worker {
	if deps.Config == nil {
		return nil
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	out := make([]workers.Worker, 0, len(compiled))
	for _, factory := range compiled {
		worker, ok := factory(deps)
		if !ok {
			continue
		}
		out = append(out, worker)
	}
	return out
}
