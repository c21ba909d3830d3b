//go:build unix

package tunnel

import (
	"errors"

	"golang.org/x/sys/unix"
)

// poller waits on every handle plus a self-pipe used to interrupt the wait.
type poller struct {
	fds  []unix.PollFd
	pipe [2]int
}

func newPoller(handles []Handle) (*poller, error) {
	p := &poller{}
	if err := unix.Pipe(p.pipe[:]); err != nil {
		return nil, &OpError{Op: "pipe", Err: err}
	}
	for _, fd := range p.pipe {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			p.close()
			return nil, &OpError{Op: "pipe", Err: err}
		}
	}

	p.fds = make([]unix.PollFd, len(handles)+1)
	for i, h := range handles {
		p.fds[i] = unix.PollFd{Fd: int32(h.Fd()), Events: unix.POLLIN}
	}
	p.fds[len(handles)] = unix.PollFd{Fd: int32(p.pipe[0]), Events: unix.POLLIN}
	return p, nil
}

// wait blocks without timeout until a descriptor is ready.
func (p *poller) wait() error {
	for {
		_, err := unix.Poll(p.fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// state reports whether handle i has something to read. Hang-ups and
// errors count as readable so the read reports them.
func (p *poller) state(i int) (bool, error) {
	revents := p.fds[i].Revents
	if revents&unix.POLLNVAL != 0 {
		return false, unix.EBADF
	}
	return revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
}

func (p *poller) woken() bool {
	return p.fds[len(p.fds)-1].Revents != 0
}

func (p *poller) wakeup() {
	unix.Write(p.pipe[1], []byte{0})
}

func (p *poller) close() {
	unix.Close(p.pipe[0])
	unix.Close(p.pipe[1])
}
