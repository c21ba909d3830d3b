package main

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/ttdump/ttdump/config"
	"github.com/ttdump/ttdump/tun/dev"
	"github.com/ttdump/ttdump/tunnel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnose(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{
			&tunnel.OpError{Op: "read", Name: "tap0", Err: syscall.EIO},
			"read tap0: errno 5 (input/output error)",
		},
		{
			&tunnel.OpError{Op: "poll", Err: syscall.EBADF},
			"poll: errno 9 (bad file descriptor)",
		},
		{
			&tunnel.OpError{Op: "read", Name: "tap0", Err: tunnel.ErrEndOfStream},
			"read tap0: " + tunnel.ErrEndOfStream.Error(),
		},
		{
			&dev.OpenError{Kind: dev.KindSetIf, Name: "tap0", Err: syscall.EPERM},
			"TUNSETIFF tap0: errno 1 (operation not permitted)",
		},
		{
			fmt.Errorf("controller: %w", &dev.OpenError{Kind: dev.KindBringUp, Name: "tun1", Err: syscall.EACCES}),
			"SIOCSIFFLAGS tun1: errno 13 (permission denied)",
		},
		{
			errors.New("listen tcp: address already in use"),
			"listen tcp: address already in use",
		},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, diagnose(c.err))
	}
}

func TestLoadConfig_ArgsOverrideDefaults(t *testing.T) {
	cfg, err := loadConfig([]string{"tap0", "tap1", "tap"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev://tap0", "dev://tap1"}, cfg.Interfaces)
	assert.Equal(t, dev.FlagTAP, cfg.Mode)

	_, err = loadConfig([]string{"tap0"})
	require.Error(t, err)
	assert.Equal(t, 1, config.ExitCode(err))

	_, err = loadConfig([]string{"tap0", "tan"})
	require.Error(t, err)
	assert.Equal(t, 2, config.ExitCode(err))
}
