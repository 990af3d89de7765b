package backend

import (
	"fmt"

	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/pipeline"
)

// ListingBackend prints the loaded modules instead of running them
type ListingBackend struct{}

// NewListing creates a listing backend
func NewListing() *ListingBackend { return &ListingBackend{} }

func (b *ListingBackend) Run(ctx *pipeline.PipelineContext) (int32, error) {
	if len(ctx.Modules) == 0 {
		return 0, fmt.Errorf("no modules to list")
	}
	for i, m := range ctx.Modules {
		if i > 0 {
			fmt.Fprintln(ctx.Output)
		}
		il.WriteListing(ctx.Output, m)
	}
	return 0, nil
}

// Name returns the backend name
func (b *ListingBackend) Name() string {
	return "listing"
}
