//go:build !linux

package dev

import (
	"errors"
	"strconv"
)

func openNative(name string, flags Flags) (Device, error) {
	return nil, &OpenError{Kind: KindOpen, Name: name, Err: errors.ErrUnsupported}
}

func openWater(name string, flags Flags) (Device, error) {
	return nil, &OpenError{Kind: KindOpen, Name: name, Err: errors.ErrUnsupported}
}

func openFd(fd int, flags Flags) (Device, error) {
	return nil, &OpenError{Kind: KindOpen, Name: DriverFd + "://" + strconv.Itoa(fd), Err: errors.ErrUnsupported}
}

// SetUp is only implemented on Linux.
func SetUp(name string) error {
	return &OpenError{Kind: KindBringUp, Name: name, Err: errors.ErrUnsupported}
}
