// Package registry maintains the directory of live WebSocket sessions.
//
// The Registry maps transient 16-bit session ids to outbound delivery
// handles. All mutations go through a single goroutine draining one
// mailbox, so the map has exactly one writer and operations are applied
// in arrival order.
package registry

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/onboarding-gateway/backend/internal/model"
)

const mailboxSize = 64

// Outbound is the capability a session hands to the Registry: enqueue one
// string for delivery as a text frame. Implementations must not block and
// must absorb failures (a dead connection drops the payload).
type Outbound interface {
	Deliver(data string)
}

type attachMsg struct {
	out      Outbound
	announce func(id uint16)
	reply    chan uint16
}

type detachMsg struct {
	id uint16
}

type promptMsg struct {
	id   uint16
	data string
}

type countMsg struct {
	reply chan int
}

type containsMsg struct {
	id    uint16
	reply chan bool
}

// Registry is the process-wide session directory.
type Registry struct {
	mailbox chan any
	done    chan struct{}
	once    sync.Once

	// Owned by the run goroutine. Never touched from outside it.
	sessions map[uint16]Outbound
	rng      *rand.Rand
}

// New creates a Registry and starts its mailbox goroutine.
func New() *Registry {
	return newWithSource(rand.NewSource(time.Now().UnixNano()))
}

func newWithSource(src rand.Source) *Registry {
	r := &Registry{
		mailbox:  make(chan any, mailboxSize),
		done:     make(chan struct{}),
		sessions: make(map[uint16]Outbound),
		rng:      rand.New(src),
	}
	go r.run()
	return r
}

// Attach registers a new session and returns its assigned id. The id is
// drawn uniformly at random from the 16-bit space; on collision the previous
// occupant is evicted from the map but not closed. Returns
// model.ErrRegistryClosed after Close.
//
// announce, when non-nil, runs on the registry goroutine after the id is
// drawn but before the session becomes addressable. Anything it enqueues on
// the outbound handle is therefore guaranteed to precede every prompt.
func (r *Registry) Attach(out Outbound, announce func(id uint16)) (uint16, error) {
	reply := make(chan uint16, 1)
	select {
	case r.mailbox <- attachMsg{out: out, announce: announce, reply: reply}:
	case <-r.done:
		return 0, model.ErrRegistryClosed
	}
	select {
	case id := <-reply:
		return id, nil
	case <-r.done:
		return 0, model.ErrRegistryClosed
	}
}

// Detach removes the session with the given id. No-op if absent or if the
// registry is closed.
func (r *Registry) Detach(id uint16) {
	select {
	case r.mailbox <- detachMsg{id: id}:
	case <-r.done:
	}
}

// Prompt delivers data to the session with the given id, if one is
// registered. Unknown ids are dropped silently. Prompt never blocks waiting
// for the client to consume.
func (r *Registry) Prompt(id uint16, data string) {
	select {
	case r.mailbox <- promptMsg{id: id, data: data}:
	case <-r.done:
	}
}

// Count returns the number of live sessions. Because the mailbox is FIFO,
// Count also acts as a synchronisation point: every operation submitted
// before it has been applied when it returns.
func (r *Registry) Count() int {
	reply := make(chan int, 1)
	select {
	case r.mailbox <- countMsg{reply: reply}:
	case <-r.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// Contains reports whether a session with the given id is registered.
func (r *Registry) Contains(id uint16) bool {
	reply := make(chan bool, 1)
	select {
	case r.mailbox <- containsMsg{id: id, reply: reply}:
	case <-r.done:
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-r.done:
		return false
	}
}

// Close shuts the registry down. Pending and subsequent operations are
// dropped; Attach returns model.ErrRegistryClosed.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.done)
	})
}

func (r *Registry) run() {
	for {
		select {
		case msg := <-r.mailbox:
			r.handle(msg)
		case <-r.done:
			return
		}
	}
}

func (r *Registry) handle(msg any) {
	switch m := msg.(type) {
	case attachMsg:
		id := uint16(r.rng.Intn(1 << 16))
		if _, collided := r.sessions[id]; collided {
			// Last writer wins; the evicted session dies on its own
			// heartbeat timeout.
			delete(r.sessions, id)
		}
		if m.announce != nil {
			m.announce(id)
		}
		r.sessions[id] = m.out
		log.Printf("session attached: %d", id)
		m.reply <- id
	case detachMsg:
		delete(r.sessions, m.id)
		log.Printf("session detached: %d", m.id)
	case promptMsg:
		if out, ok := r.sessions[m.id]; ok {
			out.Deliver(m.data)
		}
	case countMsg:
		m.reply <- len(r.sessions)
	case containsMsg:
		_, ok := r.sessions[m.id]
		m.reply <- ok
	}
}
