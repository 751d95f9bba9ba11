package xhrw

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Context shared between the interceptor, hosts and observers
type Context struct {
	Ctx         context.Context
	Log         *zerolog.Logger
	CtxComplete func()
	Config      *Config
	Reporter    Reporter
}

// NewContext with a cancelable ctx derived from parent, falls back to the global logger
func NewContext(parent context.Context, cfg *Config, reporter Reporter) *Context {
	ctx, cancel := context.WithCancel(parent)
	logger := log.Logger
	return &Context{
		Ctx:         ctx,
		Log:         &logger,
		CtxComplete: cancel,
		Config:      cfg,
		Reporter:    reporter,
	}
}

// Copy the context with a logger carrying extra fields
func (c *Context) Copy(logger *zerolog.Logger) *Context {
	n := &Context{
		Ctx:         c.Ctx,
		Log:         c.Log,
		CtxComplete: c.CtxComplete,
		Config:      c.Config,
		Reporter:    c.Reporter,
	}
	if logger != nil {
		n.Log = logger
	}
	return n
}
