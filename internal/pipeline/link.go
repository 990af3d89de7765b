package pipeline

import (
	"errors"

	"github.com/funvibe/monc/internal/corelib"
	"github.com/funvibe/monc/internal/linker"
)

var errNoModules = errors.New("no modules to link")

// LinkProcessor links the loaded modules against the core library. Every
// module exports its functions.
type LinkProcessor struct{}

func (LinkProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	if len(ctx.Modules) == 0 {
		ctx.AddError(errNoModules)
		return ctx
	}
	if ctx.Loop == nil {
		ctx.Loop = corelib.NewEventLoop()
	}

	l := linker.New(
		linker.WithAllowUndefined(ctx.Config.AllowUndefined),
		linker.WithLogger(ctx.Logger),
	)
	ctx.Library = corelib.Register(l, ctx.Output, ctx.Loop)
	for _, m := range ctx.Modules {
		l.AddModule(m, true)
	}

	image, err := l.Link()
	if err != nil {
		ctx.AddError(err)
		return ctx
	}
	ctx.Image = image
	return ctx
}
