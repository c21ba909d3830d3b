package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ttdump/ttdump/common/hexdump"
	C "github.com/ttdump/ttdump/constant"
	"github.com/ttdump/ttdump/log"
	"github.com/ttdump/ttdump/tun/dev"

	yaml "gopkg.in/yaml.v2"
)

// Category tells apart missing input from wrong input.
type Category int

const (
	Usage Category = iota + 1
	Invalid
)

// Error is a caller-input error. It is reported before any device is
// touched.
type Error struct {
	Category Category
	Msg      string
}

func (e *Error) Error() string {
	return e.Msg
}

func usageError(format string, v ...interface{}) error {
	return &Error{Category: Usage, Msg: fmt.Sprintf(format, v...)}
}

func invalidError(format string, v ...interface{}) error {
	return &Error{Category: Invalid, Msg: fmt.Sprintf(format, v...)}
}

// ExitCode maps a configuration error to the process exit code.
func ExitCode(err error) int {
	if e, ok := err.(*Error); ok && e.Category == Usage {
		return C.ExitUsage
	}
	return C.ExitInvalid
}

type RawDump struct {
	Address string `yaml:"address"`
	Chars   bool   `yaml:"chars"`
}

type RawConfig struct {
	Interfaces         []string     `yaml:"interfaces"`
	Mode               string       `yaml:"mode"`
	Copy               bool         `yaml:"copy"`
	Driver             string       `yaml:"driver"`
	LogLevel           log.LogLevel `yaml:"log-level"`
	ExternalController string       `yaml:"external-controller"`
	Secret             string       `yaml:"secret"`
	Dump               RawDump      `yaml:"dump"`
}

// Config is the validated configuration.
type Config struct {
	// Interfaces holds "driver://name" entries in ring order.
	Interfaces         []string
	Mode               dev.Flags
	Copy               bool
	LogLevel           log.LogLevel
	ExternalController string
	Secret             string
	DumpFlags          hexdump.Flag
}

func defaultRawConfig() *RawConfig {
	return &RawConfig{
		Driver:   dev.DriverNative,
		LogLevel: log.INFO,
		Dump: RawDump{
			Address: "relative",
			Chars:   true,
		},
	}
}

// Default returns the configuration used without a config file.
func Default() *RawConfig {
	return defaultRawConfig()
}

// Parse reads a YAML configuration. Missing keys keep their defaults.
func Parse(buf []byte) (*RawConfig, error) {
	rawCfg := defaultRawConfig()
	if err := yaml.Unmarshal(buf, rawCfg); err != nil {
		return nil, invalidError("parse config: %s", err.Error())
	}
	return rawCfg, nil
}

// ParseFile reads the YAML configuration at path.
func ParseFile(path string) (*RawConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, invalidError("read config: %s", err.Error())
	}
	if len(buf) == 0 {
		return nil, invalidError("configuration file %s is empty", path)
	}
	return Parse(buf)
}

// ApplyArgs overrides the interfaces and mode with the positional command
// line arguments "DEVNAME... {tun|tap}".
func (raw *RawConfig) ApplyArgs(args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return usageError("You have to specify TUN/TAP device name and mode!")
	}
	raw.Interfaces = append([]string(nil), args[:len(args)-1]...)
	raw.Mode = args[len(args)-1]
	return nil
}

// Build validates raw and resolves it into a Config.
func (raw *RawConfig) Build() (*Config, error) {
	if len(raw.Interfaces) == 0 {
		return nil, usageError("You have to specify TUN/TAP device name and mode!")
	}
	if len(raw.Interfaces) > C.MaxInterfaces {
		return nil, invalidError("Too many interfaces: %d given, at most %d supported!", len(raw.Interfaces), C.MaxInterfaces)
	}

	mode, err := dev.ParseMode(raw.Mode)
	if err != nil {
		return nil, invalidError("Please give proper TUN/TAP device name and mode! (%s)", err.Error())
	}

	driver := strings.ToLower(raw.Driver)
	if driver == "" {
		driver = dev.DriverNative
	}
	if driver != dev.DriverNative && driver != dev.DriverWater {
		return nil, invalidError("Unsupported driver `%s`", raw.Driver)
	}

	interfaces := make([]string, 0, len(raw.Interfaces))
	for _, entry := range raw.Interfaces {
		d, target, err := dev.ParseURL(entry, driver)
		if err != nil {
			return nil, invalidError("Invalid interface `%s`: %s", entry, err.Error())
		}
		if d != dev.DriverFd && (len(target) == 0 || len(target) >= C.DevNameSize) {
			return nil, invalidError("Please give proper TUN/TAP device name and mode! (`%s` must be 1 to %d characters)", target, C.DevNameSize-1)
		}
		interfaces = append(interfaces, d+"://"+target)
	}

	dumpFlags, err := parseDump(raw.Dump)
	if err != nil {
		return nil, err
	}

	return &Config{
		Interfaces:         interfaces,
		Mode:               mode,
		Copy:               raw.Copy,
		LogLevel:           raw.LogLevel,
		ExternalController: raw.ExternalController,
		Secret:             raw.Secret,
		DumpFlags:          dumpFlags,
	}, nil
}

func parseDump(raw RawDump) (hexdump.Flag, error) {
	var flags hexdump.Flag
	switch strings.ToLower(raw.Address) {
	case "", "relative":
		flags = hexdump.ShowAddr | hexdump.RelAddr
	case "absolute":
		flags = hexdump.ShowAddr
	case "none":
	default:
		return 0, invalidError("Unsupported dump address `%s`", raw.Address)
	}
	if raw.Chars {
		flags |= hexdump.ShowChar
	}
	return flags, nil
}
