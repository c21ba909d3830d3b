package dev

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind Kind) *OpenError {
	t.Helper()
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr), "want *OpenError, got %v", err)
	assert.Equal(t, kind, openErr.Kind, "got %v", err)
	return openErr
}

func TestOpen_RejectsFlagsBeforeOpening(t *testing.T) {
	cases := []struct {
		name  string
		flags Flags
		kind  Kind
	}{
		{"tap with packet info", FlagTAP | FlagPacketInfo, KindWrongFlags},
		{"no mode", FlagUp, KindWrongFlags},
		{"both modes", FlagTUN | FlagTAP, KindWrongFlags},
		{"unknown bit", FlagTUN | Flags(1<<20), KindUnknownFlag},
		{"unknown bit wins", FlagTAP | FlagPacketInfo | Flags(1<<0), KindUnknownFlag},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dev, err := Open("tap0", c.flags)
			assert.Nil(t, dev)
			openErr := requireKind(t, err, c.kind)
			assert.ErrorIs(t, err, syscall.EINVAL)
			assert.Equal(t, syscall.EINVAL, openErr.Errno())
		})
	}
}

func TestOpen_RejectsLongName(t *testing.T) {
	_, err := Open("abcdefghijklmnop", FlagTUN)
	requireKind(t, err, KindName)

	_, err = Open("bad\x00name", FlagTUN)
	requireKind(t, err, KindName)
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		raw, driver, target string
	}{
		{"tap0", DriverNative, "tap0"},
		{"tap%d", DriverNative, "tap%d"},
		{"", DriverNative, ""},
		{"dev://tun1", DriverNative, "tun1"},
		{"WATER://tap2", DriverWater, "tap2"},
		{"fd://3", DriverFd, "3"},
	}
	for _, c := range cases {
		driver, target, err := ParseURL(c.raw, DriverNative)
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.driver, driver, c.raw)
		assert.Equal(t, c.target, target, c.raw)
	}

	_, _, err := ParseURL("ftp://tap0", DriverNative)
	assert.Error(t, err)
	_, _, err = ParseURL("fd://three", DriverNative)
	assert.Error(t, err)

	driver, _, err := ParseURL("tap0", DriverWater)
	require.NoError(t, err)
	assert.Equal(t, DriverWater, driver)
}

func TestOpenURL_Validates(t *testing.T) {
	_, err := OpenURL("water://tap0", FlagTAP|FlagPacketInfo)
	requireKind(t, err, KindWrongFlags)

	_, err = OpenURL("ftp://tap0", FlagTAP)
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("tun")
	require.NoError(t, err)
	assert.Equal(t, FlagTUN, mode)

	mode, err = ParseMode("TAP")
	require.NoError(t, err)
	assert.Equal(t, FlagTAP, mode)

	_, err = ParseMode("tan")
	assert.Error(t, err)
}

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "tap|nonblock|up", (FlagTAP | FlagNonBlock | FlagUp).String())
	assert.Equal(t, "tun|pi|0x100000", (FlagTUN | FlagPacketInfo | Flags(1<<20)).String())
	assert.Equal(t, FlagTAP, (FlagTAP | FlagUp).Mode())
}

func TestOpenError(t *testing.T) {
	err := &OpenError{Kind: KindSetIf, Name: "tap0", Err: syscall.EBUSY}
	assert.Equal(t, "tap0: TUNSETIFF: "+syscall.EBUSY.Error(), err.Error())
	assert.Equal(t, syscall.EBUSY, err.Errno())
	assert.ErrorIs(t, err, syscall.EBUSY)

	err = &OpenError{Kind: KindOpen, Err: errors.New("boom")}
	assert.Equal(t, "open /dev/net/tun: boom", err.Error())
	assert.Equal(t, syscall.Errno(0), err.Errno())
}
