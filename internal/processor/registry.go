package processor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"deriv-core/pkg/deriv"
)

const DefaultMailbox = 256

// Factory builds the processor for a symbol seen for the first time.
type Factory func(symbol string) *Processor

// Handler runs one tick for one symbol.
type Handler func(ctx context.Context, p *Processor, t deriv.Tick)

// Registry maps symbols to processors, creating them lazily on the first
// tick. Each processor drains its mailbox on a dedicated goroutine so one
// slow symbol never holds up another.
type Registry struct {
	ctx     context.Context
	factory Factory
	handle  Handler
	buffer  int
	log     zerolog.Logger

	mu     sync.Mutex
	procs  map[string]*Processor
	closed bool
	wg     sync.WaitGroup
}

func NewRegistry(ctx context.Context, factory Factory, handle Handler, buffer int, log zerolog.Logger) *Registry {
	if buffer <= 0 {
		buffer = DefaultMailbox
	}
	return &Registry{
		ctx:     ctx,
		factory: factory,
		handle:  handle,
		buffer:  buffer,
		log:     log.With().Str("component", "processor").Logger(),
		procs:   make(map[string]*Processor),
	}
}

// Ensure returns the processor for symbol, starting it if needed. It
// returns nil once the registry is closed.
func (r *Registry) Ensure(symbol string) *Processor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.ensureLocked(symbol)
}

func (r *Registry) ensureLocked(symbol string) *Processor {
	if p, ok := r.procs[symbol]; ok {
		return p
	}
	p := r.factory(symbol)
	p.mailbox = make(chan deriv.Tick, r.buffer)
	r.procs[symbol] = p
	r.wg.Add(1)
	go r.run(p)
	r.log.Info().Str("symbol", symbol).Str("strategy", p.Strategy().Name()).Msg("symbol processor started")
	return p
}

// Dispatch queues a tick on its symbol's mailbox. A full mailbox drops the
// tick and reports false.
func (r *Registry) Dispatch(t deriv.Tick) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	p := r.ensureLocked(t.Symbol)
	// Sends happen under mu so Close cannot close the mailbox mid-send.
	select {
	case p.mailbox <- t:
		r.mu.Unlock()
		return true
	default:
		r.mu.Unlock()
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			r.log.Warn().Str("symbol", t.Symbol).Int64("dropped", n).Msg("mailbox full, tick dropped")
		}
		return false
	}
}

func (r *Registry) run(p *Processor) {
	defer r.wg.Done()
	for t := range p.mailbox {
		r.safeHandle(p, t)
	}
}

func (r *Registry) safeHandle(p *Processor, t deriv.Tick) {
	defer func() {
		if rec := recover(); rec != nil {
			p.panics.Add(1)
			r.log.Error().
				Str("symbol", p.Symbol).
				Float64("price", t.Quote).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("tick handler panicked")
		}
	}()
	r.handle(r.ctx, p, t)
	p.handled.Add(1)
}

func (r *Registry) Get(symbol string) (*Processor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[symbol]
	return p, ok
}

// All returns the processors sorted by symbol.
func (r *Registry) All() []*Processor {
	r.mu.Lock()
	out := make([]*Processor, 0, len(r.procs))
	for _, p := range r.procs {
		out = append(out, p)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Close stops accepting ticks and waits until every queued tick ran.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, p := range r.procs {
		close(p.mailbox)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
