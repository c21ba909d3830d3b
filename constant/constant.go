package constant

// Version and BuildTime are injected at link time.
var (
	Version   = "unreleased"
	BuildTime = "unknown"
)

const (
	// DevNameSize is the interface name bound including the trailing NUL.
	DevNameSize = 16

	// MaxInterfaces bounds the interface ring.
	MaxInterfaces = 16

	// MaxFrameSize is a jumbo frame plus link-layer header, without FCS.
	MaxFrameSize = 9126 + 14
)

// Process exit codes.
const (
	ExitUsage   = 1
	ExitInvalid = 2
	ExitOpen    = 3
	ExitLoop    = 4
)
