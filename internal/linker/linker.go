// Package linker merges independently compiled IL modules and native
// bindings into one executable vm.Module.
//
// Functions keep their module order: module i's functions start at the sum
// of the function counts of modules 0..i-1, natives follow all bytecode
// functions, and names nothing resolves get synthetic indices after that in
// the order they are first met. Linking the same inputs twice yields
// identical images.
package linker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/vm"
)

type moduleInput struct {
	module *il.Module
	export bool
}

type bindingInput struct {
	name   string
	fn     *vm.NativeFunction
	export bool
}

// Linker collects inputs for one link
type Linker struct {
	modules        []moduleInput
	bindings       []bindingInput
	allowUndefined bool
	logger         *log.Logger
}

// Option configures a Linker
type Option func(*Linker)

// WithAllowUndefined keeps unresolved references instead of failing
func WithAllowUndefined(allow bool) Option {
	return func(l *Linker) { l.allowUndefined = allow }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(l *Linker) { l.logger = logger }
}

// New creates an empty linker
func New(opts ...Option) *Linker {
	l := &Linker{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	return l
}

// AddModule adds m. Every module's exports resolve references during the
// link; only modules added with export appear in the image's export table
// and exported enum values.
func (l *Linker) AddModule(m *il.Module, export bool) {
	l.modules = append(l.modules, moduleInput{module: m, export: export})
}

// AddBinding adds a native function under name. Unexported bindings still
// satisfy calls from linked modules.
func (l *Linker) AddBinding(name string, fn *vm.NativeFunction, export bool) {
	l.bindings = append(l.bindings, bindingInput{name: name, fn: fn, export: export})
}

// Link merges all inputs. The inputs are not modified.
func (l *Linker) Link() (*vm.Module, error) {
	for _, in := range l.modules {
		if err := in.module.Validate(); err != nil {
			return nil, fmt.Errorf("link: %w", err)
		}
	}

	var (
		errs    Errors
		names   []string
		out     = il.NewModule(l.imageName())
		owners  = make(map[string]string)
		resolve = make(map[string]int)
		bases   = make([]int, len(l.modules))
		natives = make(map[int]*vm.NativeFunction)
	)
	for _, in := range l.modules {
		names = append(names, in.module.Name)
	}

	export := func(name string, idx int, module string, public bool) {
		if prev, ok := owners[name]; ok {
			errs = append(errs, &Error{Kind: ConflictingExport, Name: name, Module: module, Previous: prev})
			return
		}
		owners[name] = module
		resolve[name] = idx
		if public {
			out.ExportedFunctions[name] = idx
		}
	}

	// Copy functions, relocating string references
	stringBase := 0
	for mi, in := range l.modules {
		m := in.module
		bases[mi] = len(out.Functions)
		for fi := range m.Functions {
			fn := m.Functions[fi].Clone()
			for _, at := range fn.StringInstructions {
				fn.Code[at].Immediate += int32(stringBase)
			}
			out.Functions = append(out.Functions, fn)
			out.FunctionNames = append(out.FunctionNames, m.FunctionNames[fi])
		}
		out.Strings = append(out.Strings, m.Strings...)
		stringBase += len(m.Strings)

		for _, name := range sortedKeys(m.ExportedFunctions) {
			export(name, bases[mi]+m.ExportedFunctions[name], m.Name, in.export)
		}
		if !in.export {
			continue
		}
		for name, value := range m.ExportedEnumValues {
			out.ExportedEnumValues[name] = value
		}
	}

	// Natives follow the bytecode functions
	nativeBase := len(out.Functions)
	for i, b := range l.bindings {
		idx := nativeBase + i
		natives[idx] = b.fn
		export(b.name, idx, "<native>", b.export)
	}

	// Resolve function references
	undefined := make(map[int]string)
	undefinedIdx := make(map[string]int)
	nextUndefined := nativeBase + len(l.bindings)
	for mi, in := range l.modules {
		m := in.module
		reported := make(map[string]bool)
		for fi := range m.Functions {
			fn := &out.Functions[bases[mi]+fi]
			for _, at := range fn.FunctionReferences {
				local := int(fn.Code[at].Immediate)
				if local < len(m.Functions) {
					fn.Code[at].Immediate = int32(bases[mi] + local)
					continue
				}

				name := m.UndefinedFunctionNames[local-len(m.Functions)]
				if idx, ok := resolve[name]; ok {
					fn.Code[at].Immediate = int32(idx)
					continue
				}

				idx, ok := undefinedIdx[name]
				if !ok {
					idx = nextUndefined
					nextUndefined++
					undefinedIdx[name] = idx
					undefined[idx] = name
				}
				fn.Code[at].Immediate = int32(idx)

				if l.allowUndefined || reported[name] {
					continue
				}
				reported[name] = true
				e := &Error{Kind: UndefinedFunction, Name: name, Module: m.Name}
				e.Symbol, e.HasSymbol = fn.SymbolBefore(at)
				errs = append(errs, e)
			}
		}
	}

	if len(errs) > 0 {
		l.logger.Warn("link failed", "modules", strings.Join(names, ","), "errors", len(errs))
		return nil, errs
	}

	l.logger.Debug("linked",
		"modules", strings.Join(names, ","),
		"functions", len(out.Functions),
		"natives", len(natives),
		"undefined", len(undefined),
		"strings", len(out.Strings))
	return vm.NewModule(out, natives, undefined), nil
}

func (l *Linker) imageName() string {
	if len(l.modules) == 0 {
		return "<natives>"
	}
	return l.modules[0].module.Name
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
