package jsrt

import "sync"

// loop runs jobs one at a time on a single goroutine. post never blocks so
// jobs may post more jobs.
type loop struct {
	lock   *sync.Mutex
	queue  []func()
	wakeup chan struct{}
	quit   chan struct{}
	once   *sync.Once
}

func newLoop() *loop {
	return &loop{
		lock:   &sync.Mutex{},
		queue:  make([]func(), 0),
		wakeup: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		once:   &sync.Once{},
	}
}

func (l *loop) post(job func()) {
	l.lock.Lock()
	l.queue = append(l.queue, job)
	l.lock.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// call posts job and waits for it, must not be used from inside a job
func (l *loop) call(job func()) bool {
	done := make(chan struct{})
	l.post(func() {
		defer close(done)
		job()
	})
	select {
	case <-done:
		return true
	case <-l.quit:
		return false
	}
}

func (l *loop) run() {
	for {
		select {
		case <-l.wakeup:
			l.lock.Lock()
			jobs := l.queue
			l.queue = make([]func(), 0)
			l.lock.Unlock()
			for _, job := range jobs {
				job()
			}
		case <-l.quit:
			return
		}
	}
}

func (l *loop) stop() {
	l.once.Do(func() { close(l.quit) })
}
