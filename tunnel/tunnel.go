// Package tunnel captures frames from a set of interfaces, dumps them, and
// optionally copies each frame to the next interface of the ring.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/ttdump/ttdump/common/hexdump"
	"github.com/ttdump/ttdump/common/observable"
	C "github.com/ttdump/ttdump/constant"
	"github.com/ttdump/ttdump/log"

	"github.com/gofrs/uuid"
)

// Handle is the part of a device the loop works with.
type Handle interface {
	Name() string
	// Fd is waited on for readiness.
	Fd() int
	io.ReadWriteCloser
}

type State int32

const (
	Idle State = iota
	Dispatching
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Tunnel struct {
	handles   []Handle
	copy      bool
	out       io.Writer
	dumpFlags hexdump.Flag
	publish   bool

	// frame and text are reused across iterations and handles.
	frame []byte
	text  []byte

	state   atomic.Int32
	stats   []counters
	session uuid.UUID

	dumpCh chan interface{}
	dumps  *observable.Observable

	closeOnce sync.Once
}

type Option func(*Tunnel)

// WithCopy enables relaying every frame to the next interface of the ring.
func WithCopy(enable bool) Option {
	return func(t *Tunnel) {
		t.copy = enable
	}
}

// WithOutput sets where dumps and copy confirmations are written. Defaults
// to stdout.
func WithOutput(w io.Writer) Option {
	return func(t *Tunnel) {
		t.out = w
	}
}

// WithDumpFlags selects the dump columns. Without hexdump.RelAddr the
// address counts the bytes received on the interface so far.
func WithDumpFlags(flags hexdump.Flag) Option {
	return func(t *Tunnel) {
		t.dumpFlags = flags
	}
}

// WithPublish makes every rendered frame available to Subscribe.
func WithPublish(enable bool) Option {
	return func(t *Tunnel) {
		t.publish = enable
	}
}

// New returns a tunnel over handles. The order of handles defines the copy
// ring: frames read on handles[i] go to handles[(i+1)%len(handles)]. The
// tunnel owns the handles and closes them when Run returns.
func New(handles []Handle, opts ...Option) *Tunnel {
	t := &Tunnel{
		handles:   handles,
		out:       os.Stdout,
		dumpFlags: hexdump.Default,
		frame:     make([]byte, C.MaxFrameSize),
		stats:     make([]counters, len(handles)),
		session:   uuid.Must(uuid.NewV4()),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.publish {
		t.dumpCh = make(chan interface{})
		t.dumps = observable.NewRingObservable(t.dumpCh, dumpBacklog)
	}
	return t
}

func (t *Tunnel) Session() uuid.UUID {
	return t.session
}

func (t *Tunnel) State() State {
	return State(t.state.Load())
}

// Run waits for frames until a fatal error occurs or ctx is done, and
// closes every handle before returning. It returns ctx.Err() when stopped
// through ctx. Run must be called at most once.
func (t *Tunnel) Run(ctx context.Context) (err error) {
	defer t.terminate()

	if len(t.handles) == 0 {
		return ErrNoInterfaces
	}

	p, err := newPoller(t.handles)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			p.wakeup()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
		p.close()
	}()

	log.Infoln("[TUNNEL] session %s capturing on %s (copy: %t)", t.session, t.names(), t.copy)

	for {
		t.state.Store(int32(Idle))
		if err := p.wait(); err != nil {
			return &OpError{Op: "poll", Err: err}
		}
		if p.woken() {
			return ctx.Err()
		}

		t.state.Store(int32(Dispatching))
		if err := t.dispatch(p); err != nil {
			return err
		}
	}
}

// dispatch reads one frame from every ready handle, in ring order.
func (t *Tunnel) dispatch(p *poller) error {
	for i, h := range t.handles {
		ready, err := p.state(i)
		if err != nil {
			return &OpError{Op: "poll", Name: h.Name(), Err: err}
		}
		if !ready {
			continue
		}

		n, err := h.Read(t.frame)
		switch {
		case errors.Is(err, io.EOF):
			return &OpError{Op: "read", Name: h.Name(), Err: ErrEndOfStream}
		case temporary(err):
			log.Debugln("[TUNNEL] read %s: %v, retrying", h.Name(), err)
			continue
		case err != nil:
			return &OpError{Op: "read", Name: h.Name(), Err: err}
		case n == 0:
			return &OpError{Op: "read", Name: h.Name(), Err: ErrEndOfStream}
		}

		if err := t.handle(i, t.frame[:n]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tunnel) handle(i int, frame []byte) error {
	src := t.handles[i]
	stat := &t.stats[i]
	offset := stat.rxBytes.Add(uint64(len(frame))) - uint64(len(frame))
	stat.rxFrames.Add(1)

	t.text = hexdump.AppendAt(t.text[:0], frame, offset, t.dumpFlags, src.Name())
	t.publishDump(src.Name(), len(frame))
	t.text = append(t.text, '\n')
	if _, err := t.out.Write(t.text); err != nil {
		return &OpError{Op: "write", Name: "output", Err: err}
	}

	if !t.copy {
		return nil
	}

	j := (i + 1) % len(t.handles)
	dst := t.handles[j]
	n, err := writeFrame(dst, frame)
	switch {
	case errors.Is(err, syscall.EAGAIN):
		t.stats[j].dropped.Add(1)
		log.Warnln("[TUNNEL] %s is not ready, dropped %d bytes from %s", dst.Name(), len(frame), src.Name())
		return nil
	case err != nil:
		return &OpError{Op: "write", Name: dst.Name(), Err: err}
	}
	t.stats[j].txFrames.Add(1)
	t.stats[j].txBytes.Add(uint64(n))

	if _, err := fmt.Fprintf(t.out, "copied %d bytes to %s\n", n, dst.Name()); err != nil {
		return &OpError{Op: "write", Name: "output", Err: err}
	}
	return nil
}

// writeFrame writes frame in one call, retrying when interrupted.
func writeFrame(w io.Writer, frame []byte) (int, error) {
	for {
		n, err := w.Write(frame)
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err == nil && n != len(frame) {
			return n, io.ErrShortWrite
		}
		return n, err
	}
}

func (t *Tunnel) terminate() {
	t.closeOnce.Do(func() {
		t.state.Store(int32(Terminated))
		for _, h := range t.handles {
			if err := h.Close(); err != nil {
				log.Warnln("[TUNNEL] close %s: %v", h.Name(), err)
			}
		}
		if t.dumpCh != nil {
			close(t.dumpCh)
		}
	})
}

func (t *Tunnel) names() string {
	names := make([]string, len(t.handles))
	for i, h := range t.handles {
		names[i] = h.Name()
	}
	return strings.Join(names, ", ")
}
