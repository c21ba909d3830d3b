package observable

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("observable is closed")

type Observable struct {
	iterable Iterable
	listener *sync.Map
	size     int
	done     bool
	doneLock sync.RWMutex
}

func (o *Observable) process() {
	for item := range o.iterable {
		o.listener.Range(func(key, value interface{}) bool {
			value.(*Subscriber).Emit(item)
			return true
		})
	}
	o.close()
}

func (o *Observable) close() {
	o.doneLock.Lock()
	o.done = true
	o.doneLock.Unlock()

	o.listener.Range(func(key, value interface{}) bool {
		value.(*Subscriber).Close()
		return true
	})
}

func (o *Observable) Subscribe() (Subscription, error) {
	o.doneLock.RLock()
	defer o.doneLock.RUnlock()
	if o.done {
		return nil, ErrClosed
	}
	subscriber := newSubscriber(o.size)
	o.listener.Store(subscriber.Out(), subscriber)
	return subscriber.Out(), nil
}

func (o *Observable) UnSubscribe(sub Subscription) {
	elm, exist := o.listener.Load(sub)
	if !exist {
		return
	}
	subscriber := elm.(*Subscriber)
	o.listener.Delete(subscriber.Out())
	subscriber.Close()
}

// NewObservable fans items of any out to subscribers with unbounded buffers.
func NewObservable(any Iterable) *Observable {
	return NewRingObservable(any, 0)
}

// NewRingObservable is like NewObservable, but each subscriber keeps at most
// size pending items and drops the oldest when full.
func NewRingObservable(any Iterable, size int) *Observable {
	observable := &Observable{
		iterable: any,
		listener: &sync.Map{},
		size:     size,
	}
	go observable.process()
	return observable
}
