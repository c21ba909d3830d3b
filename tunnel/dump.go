package tunnel

import (
	"time"

	"github.com/ttdump/ttdump/common/observable"
)

// dumpBacklog is how many dumps a slow subscriber may lag behind before
// the oldest are dropped.
const dumpBacklog = 64

// Dump is a rendered frame as published to subscribers.
type Dump struct {
	Interface string    `json:"interface"`
	Size      int       `json:"size"`
	Text      string    `json:"dump"`
	Time      time.Time `json:"time"`
}

// Subscribe returns a stream of *Dump. It is closed when Run returns.
func (t *Tunnel) Subscribe() (observable.Subscription, error) {
	if t.dumps == nil {
		return nil, ErrNotPublished
	}
	return t.dumps.Subscribe()
}

func (t *Tunnel) UnSubscribe(sub observable.Subscription) {
	if t.dumps != nil {
		t.dumps.UnSubscribe(sub)
	}
}

func (t *Tunnel) publishDump(name string, size int) {
	if t.dumpCh == nil {
		return
	}
	t.dumpCh <- &Dump{
		Interface: name,
		Size:      size,
		Text:      string(t.text),
		Time:      time.Now(),
	}
}
