//go:build linux

package dev

import (
	"errors"
	"os"
	"sync"

	"github.com/songgao/water"
	"golang.org/x/sys/unix"
)

var newWater = water.New

// waterDevice keeps the water interface for naming and closing, but reads
// and writes the raw descriptor so FlagNonBlock surfaces EAGAIN instead of
// parking in the runtime poller.
type waterDevice struct {
	*water.Interface
	fd    int
	flags Flags

	closeOnce sync.Once
}

func (w *waterDevice) Type() string {
	return DriverWater
}

func (w *waterDevice) Flags() Flags {
	return w.flags
}

func (w *waterDevice) Fd() int {
	return w.fd
}

func (w *waterDevice) Read(buff []byte) (int, error) {
	n, err := unix.Read(w.fd, buff)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (w *waterDevice) Write(buff []byte) (int, error) {
	n, err := unix.Write(w.fd, buff)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (w *waterDevice) Close() (err error) {
	w.closeOnce.Do(func() {
		err = w.Interface.Close()
	})
	return
}

func openWater(name string, flags Flags) (Device, error) {
	// water always asks for IFF_NO_PI
	if flags&FlagPacketInfo != 0 {
		return nil, &OpenError{Kind: KindWrongFlags, Name: name, Err: errors.New("packet info is not supported by water")}
	}

	config := water.Config{
		DeviceType: water.TUN,
	}
	if flags&FlagTAP != 0 {
		config.DeviceType = water.TAP
	}
	if name != "" {
		config.PlatformSpecificParams = water.PlatformSpecificParams{
			Name: name,
		}
	}

	ifce, err := newWater(config)
	if err != nil {
		return nil, &OpenError{Kind: waterFailure(), Name: name, Err: err}
	}

	file, ok := ifce.ReadWriteCloser.(*os.File)
	if !ok {
		ifce.Close()
		return nil, &OpenError{Kind: KindOpen, Name: name, Err: errors.New("water interface has no descriptor")}
	}
	// Fd puts the file in blocking mode, configure restores O_NONBLOCK
	fd := int(file.Fd())

	if err := configure(fd, ifce.Name(), flags); err != nil {
		ifce.Close()
		return nil, err
	}

	return &waterDevice{
		Interface: ifce,
		fd:        fd,
		flags:     flags,
	}, nil
}

// waterFailure tells which step water.New failed at. water returns bare
// errnos for both, so the clone device is opened again to find out.
func waterFailure() Kind {
	fd, err := sys.open(cloneDevicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return KindOpen
	}
	sys.close(fd)
	return KindSetIf
}
