package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/modstore"
)

// LoadProcessor reads the modules listed in the config. Paths are IL bundle
// files, "@name" references come from the module store.
type LoadProcessor struct{}

func (LoadProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}

	for _, ref := range ctx.Config.Modules {
		m, err := load(ctx, ref)
		if err != nil {
			ctx.AddError(err)
			continue
		}
		ctx.Logger.Debug("module loaded", "ref", ref, "name", m.Name, "functions", len(m.Functions))
		ctx.Modules = append(ctx.Modules, m)
	}
	if len(ctx.Modules) == 0 && !ctx.Failed() {
		ctx.AddError(errNoModules)
	}
	return ctx
}

func load(ctx *PipelineContext, ref string) (*il.Module, error) {
	if name, ok := strings.CutPrefix(ref, config.StoreModulePrefix); ok {
		if ctx.Store == nil {
			s, err := modstore.Open(ctx.Context, ctx.Config.StorePath())
			if err != nil {
				return nil, err
			}
			ctx.Store, ctx.ownsStore = s, true
		}
		return ctx.Store.Get(ctx.Context, name)
	}

	path := ctx.Config.ModulePath(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module: %w", err)
	}
	m, err := il.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return m, nil
}
