package pipeline

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/corelib"
	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/modstore"
	"github.com/funvibe/monc/internal/vm"
)

// PipelineContext carries the state shared by the load, link and run stages.
type PipelineContext struct {
	Context context.Context
	Config  *config.Config

	Input  io.Reader
	Output io.Writer
	Logger *log.Logger

	// Store is opened by the load stage on the first "@name" reference
	// unless the caller supplies one.
	Store *modstore.Store

	Modules []*il.Module
	Image   *vm.Module
	Loop    *corelib.EventLoop
	Library *corelib.Library

	Result int32
	Errors []error

	ownsStore bool
}

// NewContext creates a context for cfg reading stdin and writing stdout.
func NewContext(ctx context.Context, cfg *config.Config) *PipelineContext {
	if cfg == nil {
		cfg = config.Default()
	}
	return &PipelineContext{
		Context: ctx,
		Config:  cfg,
		Input:   os.Stdin,
		Output:  os.Stdout,
		Logger:  log.Default(),
		Loop:    corelib.NewEventLoop(),
	}
}

// AddError records a stage failure.
func (c *PipelineContext) AddError(err error) {
	c.Errors = append(c.Errors, err)
}

// Failed reports whether any stage recorded an error.
func (c *PipelineContext) Failed() bool { return len(c.Errors) > 0 }

// Err joins the recorded errors.
func (c *PipelineContext) Err() error { return errors.Join(c.Errors...) }

// Close releases the module store if the pipeline opened it.
func (c *PipelineContext) Close() error {
	if c.ownsStore && c.Store != nil {
		err := c.Store.Close()
		c.Store, c.ownsStore = nil, false
		return err
	}
	return nil
}
