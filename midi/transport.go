package midi

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Transport is the platform MIDI service. Handlers may be invoked from
// goroutines owned by the transport and must not block.
type Transport interface {
	Destinations() []Endpoint
	Sources() []Endpoint

	// SetChangeHandler fires on endpoint add/remove/setup-changed
	SetChangeHandler(fn func())
	// SetReceiveHandler installs the input port callback
	SetReceiveHandler(fn func(EventList))

	Send(dst EndpointID, data []byte) error
	ConnectSource(src EndpointID) error
	DisconnectSource(src EndpointID) error

	Close() error
}

// InitStage names the transport setup step that failed
type InitStage int

const (
	StageClient InitStage = iota
	StageOutputPort
	StageInputPort
)

func (s InitStage) String() string {
	switch s {
	case StageClient:
		return "client create"
	case StageOutputPort:
		return "output port"
	case StageInputPort:
		return "input port"
	}
	return "unknown"
}

// StatusUnknown is used when the platform reports no status code
const StatusUnknown = -1

// InitError is returned when the transport cannot be brought up
type InitError struct {
	Stage  InitStage
	Status int
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("midi %s failed (status %d): %v", e.Stage, e.Status, e.Err)
	}
	return fmt.Sprintf("midi %s failed (status %d)", e.Stage, e.Status)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Backend names accepted by Open
const (
	BackendAuto = "auto"
	BackendLive = "live"
	BackendStub = "stub"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name
var ErrUnknownBackend = errors.New("midi: unknown backend")

// Options configure Open
type Options struct {
	ClientName   string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Open selects the transport once at startup. "auto" falls back to a
// Stub when the live driver cannot be initialised.
func Open(backend string, opts Options) (Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case BackendStub:
		return NewStub(StubOptions{Loopback: true}), nil
	case BackendLive:
		return NewLive(opts)
	case BackendAuto, "":
		live, err := NewLive(opts)
		if err == nil {
			return live, nil
		}
		var initErr *InitError
		if !errors.As(err, &initErr) {
			return nil, err
		}
		logger.Warn("native MIDI not available, running in stub mode", "component", "midi", "error", err)
		return NewStub(StubOptions{Loopback: true}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
