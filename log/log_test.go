package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warn":    WARNING,
		"warning": WARNING,
		" error ": ERROR,
		"silent":  SILENT,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogLevel_YAML(t *testing.T) {
	var cfg struct {
		Level LogLevel `yaml:"log-level"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("log-level: warning\n"), &cfg))
	assert.Equal(t, WARNING, cfg.Level)

	assert.Error(t, yaml.Unmarshal([]byte("log-level: loud\n"), &cfg))
}

func TestLogLevel_JSON(t *testing.T) {
	data, err := json.Marshal(ERROR)
	require.NoError(t, err)
	assert.Equal(t, `"error"`, string(data))

	var l LogLevel
	require.NoError(t, json.Unmarshal([]byte(`"debug"`), &l))
	assert.Equal(t, DEBUG, l)
	assert.Equal(t, "unknown", LogLevel(42).String())
}

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(Level())

	SetLevel(WARNING)
	Infoln("hidden %d", 1)
	Warnln("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")

	SetLevel(SILENT)
	Errorln("muted")
	assert.NotContains(t, buf.String(), "muted")
}

func TestSubscribe(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	defer SetOutput(os.Stderr)

	sub := Subscribe()
	defer UnSubscribe(sub)

	Errorln("read %s failed", "tap0")

	// events logged before Subscribe may still be in flight
	timeout := time.After(time.Second)
	for {
		select {
		case elm := <-sub:
			event := elm.(*Event)
			if event.Payload != "read tap0 failed" {
				continue
			}
			assert.Equal(t, ERROR, event.LogLevel)
			assert.Equal(t, "error", event.Type())
			return
		case <-timeout:
			t.Fatal("no event published")
		}
	}
}
