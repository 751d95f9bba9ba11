package intercept

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/xhrwatcher/xhrw"
)

// hosts wrapped by any interceptor, a host is only ever wrapped once
var (
	wrappedLock = &sync.Mutex{}
	wrapped     = make(map[xhrw.Host]*Interceptor)
)

// Interceptor holds the installation state and the registry for one dispatch
// primitive. Create it once at startup and share it between everything that
// wants to observe requests.
type Interceptor struct {
	failures    int64
	log         *zerolog.Logger
	registry    *Registry
	installLock *sync.Mutex
	host        xhrw.Host
	original    xhrw.DispatchFunc
	trampoline  *trampoline
}

// New interceptor, nothing is wrapped until Install is called. A host can be
// wrapped by one interceptor only: use For to find the one already installed.
func New(bctx *xhrw.Context) *Interceptor {
	var logger zerolog.Logger
	if bctx != nil && bctx.Log != nil {
		logger = bctx.Log.With().Str("component", "interceptor").Logger()
	} else {
		logger = zerolog.Nop()
	}
	return &Interceptor{
		log:         &logger,
		registry:    NewRegistry(),
		installLock: &sync.Mutex{},
	}
}

// Install replaces the host's dispatch primitive with the trampoline. Calling
// it again for the same host is a no-op: the existing trampoline and registry
// are kept, so nothing is wrapped twice and no observer is dropped.
func (i *Interceptor) Install(host xhrw.Host) error {
	i.installLock.Lock()
	defer i.installLock.Unlock()

	if i.host != nil {
		if i.host == host {
			return nil
		}
		return xhrw.ErrAlreadyInstalled
	}

	wrappedLock.Lock()
	defer wrappedLock.Unlock()
	if other, ok := wrapped[host]; ok && other != i {
		return errors.Wrapf(xhrw.ErrAlreadyInstalled, "host %s is wrapped by another interceptor", host.Name())
	}

	i.original = host.Dispatcher()
	i.trampoline = newTrampoline(i.original, i.registry, i.log, &i.failures)
	host.SetDispatcher(i.trampoline.dispatch)
	i.host = host
	wrapped[host] = i
	i.log.Info().Str("host", host.Name()).Msg("dispatch primitive wrapped")
	return nil
}

// Installed reports if a primitive has been wrapped
func (i *Interceptor) Installed() bool {
	i.installLock.Lock()
	defer i.installLock.Unlock()
	return i.host != nil
}

// Host the interceptor is installed on, nil if not installed
func (i *Interceptor) Host() xhrw.Host {
	i.installLock.Lock()
	defer i.installLock.Unlock()
	return i.host
}

// Original returns the captured primitive, calling it bypasses the observers
func (i *Interceptor) Original() (xhrw.DispatchFunc, error) {
	i.installLock.Lock()
	defer i.installLock.Unlock()
	if i.original == nil {
		return nil, xhrw.ErrNotInstalled
	}
	return i.original, nil
}

// For returns the interceptor wrapping host, nil if it is not wrapped
func For(host xhrw.Host) *Interceptor {
	wrappedLock.Lock()
	defer wrappedLock.Unlock()
	return wrapped[host]
}

// Register observers against the shared registry
func (i *Interceptor) Register(observers ...xhrw.Observer) {
	i.registry.Register(observers...)
}

// Registry shared by every installer call
func (i *Interceptor) Registry() *Registry {
	return i.registry
}

// Failures is the number of observer invocations that panicked
func (i *Interceptor) Failures() int64 {
	return atomic.LoadInt64(&i.failures)
}

// AddCallback installs the interceptor on host if needed, then registers obs
func AddCallback(i *Interceptor, host xhrw.Host, obs xhrw.Observer) error {
	if err := i.Install(host); err != nil {
		return err
	}
	i.Register(obs)
	return nil
}
