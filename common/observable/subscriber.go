package observable

import (
	"sync"

	"gopkg.in/eapache/channels.v1"
)

type Subscription <-chan interface{}

type Subscriber struct {
	buffer channels.Channel
	mu     sync.Mutex
	closed bool
}

// Emit never blocks: the buffer is either unbounded or drops the oldest item.
func (s *Subscriber) Emit(item interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buffer.In() <- item
}

func (s *Subscriber) Out() Subscription {
	return s.buffer.Out()
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.buffer.Close()
}

func newSubscriber(size int) *Subscriber {
	var buffer channels.Channel
	if size > 0 {
		buffer = channels.NewRingChannel(channels.BufferCap(size))
	} else {
		buffer = channels.NewInfiniteChannel()
	}
	return &Subscriber{buffer: buffer}
}
