package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/ttdump/ttdump/config"
	C "github.com/ttdump/ttdump/constant"
	"github.com/ttdump/ttdump/hub"
	"github.com/ttdump/ttdump/log"
	"github.com/ttdump/ttdump/tun/dev"
	"github.com/ttdump/ttdump/tunnel"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const usage = `Usage: %s [OPTIONS] DEVNAME... {tun|tap}
Dump packets/frames reaching given TUN/TAP interfaces.

  -c,--config FILE      Read settings from a YAML file.
  --copy                Copy every frame to the next interface of the ring.
  --driver NAME         Default device driver: dev or water. (default: "dev")
  --log-level LEVEL     debug, info, warning, error or silent. (default: "info")
  --controller ADDR     Serve statistics and dumps at ADDR.
  --secret SECRET       Bearer secret of the controller.
  -v,--version          Display the current binary file version.

DEVNAME is a name such as tap0, a template such as tap%%d, or
DRIVER://TARGET with DRIVER one of dev, water or fd (fd://3 adopts an
inherited descriptor).
`

var (
	configFile  string
	copyFrames  bool
	driver      string
	logLevel    string
	controller  string
	secret      string
	showVersion bool
)

func init() {
	pflag.StringVarP(&configFile, "config", "c", "", "")
	pflag.BoolVar(&copyFrames, "copy", false, "")
	pflag.StringVar(&driver, "driver", dev.DriverNative, "")
	pflag.StringVar(&logLevel, "log-level", "info", "")
	pflag.StringVar(&controller, "controller", "", "")
	pflag.StringVar(&secret, "secret", "", "")
	pflag.BoolVarP(&showVersion, "version", "v", false, "")

	pflag.Usage = func() {
		fmt.Printf(usage, filepath.Base(os.Args[0]))
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) == 1 {
		pflag.Usage()
		return 0
	}
	pflag.Parse()

	if showVersion {
		fmt.Printf("ttdump %s %s/%s with %s %s\n", C.Version, runtime.GOOS, runtime.GOARCH, runtime.Version(), C.BuildTime)
		return 0
	}

	cfg, err := loadConfig(pflag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return config.ExitCode(err)
	}
	log.SetLevel(cfg.LogLevel)

	ctrl, err := hub.Listen(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "external controller %s: %s\n", cfg.ExternalController, err.Error())
		return C.ExitInvalid
	}

	devices, err := openDevices(cfg)
	if err != nil {
		ctrl.Close()
		fmt.Fprintln(os.Stderr, diagnose(err))
		return C.ExitOpen
	}

	handles := make([]tunnel.Handle, len(devices))
	for i, d := range devices {
		handles[i] = d
	}
	t := tunnel.New(handles,
		tunnel.WithCopy(cfg.Copy),
		tunnel.WithDumpFlags(cfg.DumpFlags),
		tunnel.WithPublish(ctrl != nil),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.Run(gctx)
	})
	g.Go(func() error {
		return ctrl.Serve(gctx, t)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		log.Infoln("[TUNNEL] session %s stopped", t.Session())
		return 0
	}
	fmt.Fprintln(os.Stderr, diagnose(err))
	return C.ExitLoop
}

// loadConfig merges the config file, the flags that were given and the
// positional arguments, in increasing priority.
func loadConfig(args []string) (*config.Config, error) {
	raw := config.Default()
	if configFile != "" {
		var err error
		if raw, err = config.ParseFile(configFile); err != nil {
			return nil, err
		}
	}

	flags := pflag.CommandLine
	if flags.Changed("copy") {
		raw.Copy = copyFrames
	}
	if flags.Changed("driver") {
		raw.Driver = driver
	}
	if flags.Changed("log-level") {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return nil, &config.Error{Category: config.Invalid, Msg: err.Error()}
		}
		raw.LogLevel = level
	}
	if flags.Changed("controller") {
		raw.ExternalController = controller
	}
	if flags.Changed("secret") {
		raw.Secret = secret
	}

	if err := raw.ApplyArgs(args); err != nil {
		return nil, err
	}
	return raw.Build()
}

// openDevices opens the configured interfaces in ring order. On failure
// the ones already opened are closed again.
func openDevices(cfg *config.Config) ([]dev.Device, error) {
	flags := cfg.Mode | dev.FlagCloseOnExec | dev.FlagNonBlock | dev.FlagUp

	devices := make([]dev.Device, 0, len(cfg.Interfaces))
	for _, entry := range cfg.Interfaces {
		d, err := dev.OpenURL(entry, flags)
		if err != nil {
			for i := len(devices) - 1; i >= 0; i-- {
				devices[i].Close()
			}
			return nil, err
		}
		log.Infoln("[DEV] opened %s via %s (%s)", d.Name(), d.Type(), d.Flags())
		devices = append(devices, d)
	}
	return devices, nil
}

// diagnose names the failed operation and the OS error behind err, e.g.
// "read tap0: errno 5 (input/output error)".
func diagnose(err error) string {
	var openErr *dev.OpenError
	if errors.As(err, &openErr) {
		return describe(openErr.Kind.String()+" "+openErr.Name, openErr.Err)
	}
	var opErr *tunnel.OpError
	if errors.As(err, &opErr) {
		return describe(opErr.Op+" "+opErr.Name, opErr.Err)
	}
	return err.Error()
}

func describe(op string, err error) string {
	op = strings.TrimSpace(op)
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("%s: errno %d (%s)", op, int(errno), errno.Error())
	}
	return fmt.Sprintf("%s: %s", op, err.Error())
}
