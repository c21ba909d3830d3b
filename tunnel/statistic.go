package tunnel

import "sync/atomic"

type counters struct {
	rxFrames atomic.Uint64
	rxBytes  atomic.Uint64
	txFrames atomic.Uint64
	txBytes  atomic.Uint64
	dropped  atomic.Uint64
}

// Statistic counts the traffic of one interface. Rx is what was captured on
// it, Tx what was copied into it from its predecessor.
type Statistic struct {
	Name     string `json:"name"`
	RxFrames uint64 `json:"rxFrames"`
	RxBytes  uint64 `json:"rxBytes"`
	TxFrames uint64 `json:"txFrames"`
	TxBytes  uint64 `json:"txBytes"`
	Dropped  uint64 `json:"dropped"`
}

// Snapshot is safe to call while Run is in progress.
func (t *Tunnel) Snapshot() []Statistic {
	snapshot := make([]Statistic, len(t.handles))
	for i, h := range t.handles {
		c := &t.stats[i]
		snapshot[i] = Statistic{
			Name:     h.Name(),
			RxFrames: c.rxFrames.Load(),
			RxBytes:  c.rxBytes.Load(),
			TxFrames: c.txFrames.Load(),
			TxBytes:  c.txBytes.Load(),
			Dropped:  c.dropped.Load(),
		}
	}
	return snapshot
}
