//go:build linux

package dev

import (
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// sysOps holds the system calls Open depends on.
type sysOps struct {
	open   func(path string, mode int, perm uint32) (int, error)
	close  func(fd int) error
	socket func(domain, typ, proto int) (int, error)
	ioctl  func(fd int, req uint, ifr *unix.Ifreq) error
	fcntl  func(fd int, cmd int, arg int) (int, error)
}

var sys = sysOps{
	open:   unix.Open,
	close:  unix.Close,
	socket: unix.Socket,
	ioctl:  unix.IoctlIfreq,
	fcntl: func(fd int, cmd int, arg int) (int, error) {
		return unix.FcntlInt(uintptr(fd), cmd, arg)
	},
}

type tun struct {
	name   string
	driver string
	fd     int
	flags  Flags

	closeOnce sync.Once
}

func (t *tun) Name() string {
	return t.name
}

func (t *tun) Type() string {
	return t.driver
}

func (t *tun) Flags() Flags {
	return t.flags
}

func (t *tun) Fd() int {
	return t.fd
}

func (t *tun) Read(buff []byte) (int, error) {
	n, err := unix.Read(t.fd, buff)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (t *tun) Write(buff []byte) (int, error) {
	n, err := unix.Write(t.fd, buff)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (t *tun) Close() (err error) {
	t.closeOnce.Do(func() {
		err = sys.close(t.fd)
	})
	return
}

func openNative(name string, flags Flags) (Device, error) {
	fd, err := sys.open(cloneDevicePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, &OpenError{Kind: KindOpen, Name: name, Err: err}
	}

	realName, err := setInterface(fd, name, flags)
	if err == nil {
		err = configure(fd, realName, flags)
	}
	if err != nil {
		sys.close(fd)
		return nil, err
	}

	return &tun{
		name:   realName,
		driver: DriverNative,
		fd:     fd,
		flags:  flags,
	}, nil
}

// setInterface registers the interface with TUNSETIFF and returns the name
// the kernel settled on.
func setInterface(fd int, name string, flags Flags) (string, error) {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return "", &OpenError{Kind: KindName, Name: name, Err: err}
	}

	var iff uint16
	if flags&FlagTUN != 0 {
		iff |= unix.IFF_TUN
	}
	if flags&FlagTAP != 0 {
		iff |= unix.IFF_TAP
	}
	if flags&FlagPacketInfo == 0 {
		iff |= unix.IFF_NO_PI
	}
	ifr.SetUint16(iff)

	if err := sys.ioctl(fd, unix.TUNSETIFF, ifr); err != nil {
		return "", &OpenError{Kind: KindSetIf, Name: name, Err: err}
	}
	return ifr.Name(), nil
}

// configure applies the optional steps shared by every driver. The caller
// owns fd and closes it on error.
func configure(fd int, name string, flags Flags) error {
	if flags&FlagUp != 0 {
		if err := SetUp(name); err != nil {
			return err
		}
	}

	if flags&FlagCloseOnExec != 0 {
		if err := setFdFlag(fd, unix.F_GETFD, unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
			return &OpenError{Kind: KindSetCloseOnExec, Name: name, Err: err}
		}
	}

	if flags&FlagNonBlock != 0 {
		if err := setFdFlag(fd, unix.F_GETFL, unix.F_SETFL, unix.O_NONBLOCK); err != nil {
			return &OpenError{Kind: KindSetNonBlock, Name: name, Err: err}
		}
	}
	return nil
}

func setFdFlag(fd, get, set, flag int) error {
	cur, err := sys.fcntl(fd, get, 0)
	if err != nil {
		return err
	}
	_, err = sys.fcntl(fd, set, cur|flag)
	return err
}

// SetUp brings the named interface administratively up. The interface flags
// are queried first and left alone if IFF_UP is already set.
func SetUp(name string) error {
	// interface ioctls need a socket, any datagram socket will do
	sk, err := sys.socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return &OpenError{Kind: KindNewSocket, Name: name, Err: err}
	}
	defer sys.close(sk)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return &OpenError{Kind: KindName, Name: name, Err: err}
	}
	if err := sys.ioctl(sk, unix.SIOCGIFFLAGS, ifr); err != nil {
		return &OpenError{Kind: KindGetFlags, Name: name, Err: err}
	}

	iff := ifr.Uint16()
	if iff&unix.IFF_UP != 0 {
		return nil
	}
	ifr.SetUint16(iff | unix.IFF_UP)
	if err := sys.ioctl(sk, unix.SIOCSIFFLAGS, ifr); err != nil {
		return &OpenError{Kind: KindBringUp, Name: name, Err: err}
	}
	return nil
}

// openFd adopts a descriptor that already refers to a TUN/TAP interface,
// e.g. one handed over by a privileged parent. The descriptor is duplicated
// so closing the device leaves the inherited one untouched.
func openFd(fd int, flags Flags) (Device, error) {
	label := DriverFd + "://" + strconv.Itoa(fd)
	if flags&^allFlags != 0 {
		return nil, &OpenError{Kind: KindUnknownFlag, Name: label, Err: unix.EINVAL}
	}

	nfd, err := sys.fcntl(fd, unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, &OpenError{Kind: KindOpen, Name: label, Err: err}
	}

	dev, err := adopt(nfd, label, flags)
	if err != nil {
		sys.close(nfd)
		return nil, err
	}
	return dev, nil
}

func adopt(fd int, label string, flags Flags) (Device, error) {
	ifr, err := unix.NewIfreq("")
	if err != nil {
		return nil, &OpenError{Kind: KindName, Name: label, Err: err}
	}
	if err := sys.ioctl(fd, unix.TUNGETIFF, ifr); err != nil {
		return nil, &OpenError{Kind: KindSetIf, Name: label, Err: err}
	}

	iff := ifr.Uint16()
	var actual Flags
	switch {
	case iff&unix.IFF_TAP != 0:
		actual = FlagTAP
	case iff&unix.IFF_TUN != 0:
		actual = FlagTUN
		if iff&unix.IFF_NO_PI == 0 {
			actual |= FlagPacketInfo
		}
	}
	if mode := flags.Mode(); mode != 0 && mode != actual.Mode() {
		return nil, &OpenError{Kind: KindWrongFlags, Name: label, Err: unix.EINVAL}
	}
	flags = flags&^(FlagTUN|FlagTAP|FlagPacketInfo) | actual

	name := ifr.Name()
	if err := configure(fd, name, flags); err != nil {
		return nil, err
	}
	return &tun{
		name:   name,
		driver: DriverFd,
		fd:     fd,
		flags:  flags,
	}, nil
}
