//go:build !unix

package tunnel

import "errors"

type poller struct{}

func newPoller(handles []Handle) (*poller, error) {
	return nil, &OpError{Op: "poll", Err: errors.ErrUnsupported}
}

func (p *poller) wait() error {
	return errors.ErrUnsupported
}

func (p *poller) state(i int) (bool, error) {
	return false, errors.ErrUnsupported
}

func (p *poller) woken() bool {
	return false
}

func (p *poller) wakeup() {}

func (p *poller) close() {}
