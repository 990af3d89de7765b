// Package backend provides an interface for different execution backends.
// This allows switching between a plain VM run, a debugger session and a
// listing of the loaded modules.
package backend

import (
	"github.com/funvibe/monc/internal/pipeline"
)

// Backend is the interface for execution backends
type Backend interface {
	// Run executes the program from pipeline context and returns the result
	Run(ctx *pipeline.PipelineContext) (int32, error)

	// Name returns the backend name for display
	Name() string
}
