package dev

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	C "github.com/ttdump/ttdump/constant"
)

const (
	// DriverNative talks to /dev/net/tun directly.
	DriverNative = "dev"
	// DriverWater opens the interface through songgao/water.
	DriverWater = "water"
	// DriverFd adopts an already configured descriptor, e.g. fd://3.
	DriverFd = "fd"

	cloneDevicePath = "/dev/net/tun"
)

// Device is an opened TUN/TAP interface.
type Device interface {
	// Name returns the name the kernel assigned, which differs from the
	// requested one when a template like "tap%d" was given.
	Name() string
	Type() string
	Flags() Flags
	// Fd returns the descriptor to wait on for readiness.
	Fd() int
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	// Close releases the descriptor. Subsequent calls return nil.
	Close() error
}

// Flags configures how a device is opened.
type Flags uint32

const (
	FlagTUN Flags = 1 << 1
	// FlagPacketInfo keeps the 4 byte flags/proto header on TUN frames.
	FlagPacketInfo Flags = 1 << 2
	FlagTAP        Flags = 1 << 3

	FlagCloseOnExec Flags = 1 << 12
	FlagNonBlock    Flags = 1 << 13
	// FlagUp brings the interface administratively up.
	FlagUp Flags = 1 << 15

	allFlags = FlagTUN | FlagPacketInfo | FlagTAP | FlagCloseOnExec | FlagNonBlock | FlagUp
)

func (f Flags) Mode() Flags {
	return f & (FlagTUN | FlagTAP)
}

func (f Flags) String() string {
	names := []struct {
		flag Flags
		name string
	}{
		{FlagTUN, "tun"},
		{FlagPacketInfo, "pi"},
		{FlagTAP, "tap"},
		{FlagCloseOnExec, "cloexec"},
		{FlagNonBlock, "nonblock"},
		{FlagUp, "up"},
	}
	var parts []string
	for _, n := range names {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := f &^ allFlags; rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}

// ParseMode maps "tun" and "tap" to their flag.
func ParseMode(s string) (Flags, error) {
	switch strings.ToLower(s) {
	case "tun":
		return FlagTUN, nil
	case "tap":
		return FlagTAP, nil
	}
	return 0, fmt.Errorf("unknown mode `%s`", s)
}

// Kind identifies the step of Open that failed.
type Kind int

const (
	KindUnknownFlag Kind = iota + 1
	KindWrongFlags
	KindName
	KindOpen
	KindSetIf
	KindNewSocket
	KindGetFlags
	KindBringUp
	KindSetCloseOnExec
	KindSetNonBlock
)

func (k Kind) String() string {
	switch k {
	case KindUnknownFlag:
		return "unknown flag"
	case KindWrongFlags:
		return "incompatible flags"
	case KindName:
		return "invalid name"
	case KindOpen:
		return "open " + cloneDevicePath
	case KindSetIf:
		return "TUNSETIFF"
	case KindNewSocket:
		return "socket"
	case KindGetFlags:
		return "SIOCGIFFLAGS"
	case KindBringUp:
		return "SIOCSIFFLAGS"
	case KindSetCloseOnExec:
		return "set close-on-exec"
	case KindSetNonBlock:
		return "set non-blocking"
	default:
		return "unknown"
	}
}

// OpenError reports which step of opening a device failed and the
// underlying OS error.
type OpenError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Name == "" {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Name + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Errno returns the OS error code, or 0 if the failure carries none.
func (e *OpenError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

// validate checks everything that can be rejected before touching the OS.
func validate(name string, flags Flags) error {
	if flags&^allFlags != 0 {
		return &OpenError{Kind: KindUnknownFlag, Name: name, Err: syscall.EINVAL}
	}
	switch flags.Mode() {
	case FlagTUN:
	case FlagTAP:
		if flags&FlagPacketInfo != 0 {
			return &OpenError{Kind: KindWrongFlags, Name: name, Err: syscall.EINVAL}
		}
	default:
		return &OpenError{Kind: KindWrongFlags, Name: name, Err: syscall.EINVAL}
	}
	if len(name) >= C.DevNameSize || strings.IndexByte(name, 0) >= 0 {
		return &OpenError{Kind: KindName, Name: name, Err: syscall.EINVAL}
	}
	return nil
}

// Open creates or attaches to the named TUN/TAP interface with the native
// driver. An empty name or a template like "tun%d" lets the kernel pick.
func Open(name string, flags Flags) (Device, error) {
	if err := validate(name, flags); err != nil {
		return nil, err
	}
	return openNative(name, flags)
}

// ParseURL splits "driver://target" into its parts. A bare target uses
// defaultDriver. Templates such as "tap%d" are not valid URL escapes, so
// the split is done by hand.
func ParseURL(raw, defaultDriver string) (driver, target string, err error) {
	driver, target, found := strings.Cut(raw, "://")
	if !found {
		driver, target = defaultDriver, raw
	}
	driver = strings.ToLower(driver)
	switch driver {
	case DriverNative, DriverWater:
	case DriverFd:
		if _, err := strconv.ParseUint(target, 10, 31); err != nil {
			return "", "", fmt.Errorf("invalid descriptor `%s`", target)
		}
	default:
		return "", "", fmt.Errorf("unsupported device type `%s`", driver)
	}
	return driver, target, nil
}

// OpenURL opens a device given as "driver://target", see ParseURL.
func OpenURL(raw string, flags Flags) (Device, error) {
	driver, target, err := ParseURL(raw, DriverNative)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverWater:
		if err := validate(target, flags); err != nil {
			return nil, err
		}
		return openWater(target, flags)
	case DriverFd:
		fd, _ := strconv.Atoi(target)
		return openFd(fd, flags)
	default:
		return Open(target, flags)
	}
}
