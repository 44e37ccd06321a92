package midi

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Endpoint ids carry the direction in the high byte so that input and
// output ids never collide.
const (
	idDestination EndpointID = 0x01000000
	idSource      EndpointID = 0x02000000
	idNumberMask  EndpointID = 0x00FFFFFF
)

const (
	defaultPollRate = time.Second
	scanTimeout     = 3 * time.Second
)

// Live is the rtmidi backed transport. The driver has no hot-plug
// notifications, so port lists are polled.
type Live struct {
	drv      *rtmididrv.Driver
	log      *slog.Logger
	pollRate time.Duration

	mu       sync.Mutex
	outIDs   *portTable
	inIDs    *portTable
	senders  map[EndpointID]func(gomidi.Message) error
	inputs   map[EndpointID]drivers.In
	stops    map[EndpointID]func()
	lastIns  []drivers.In
	lastOuts []drivers.Out
	onChange func()

	onReceive atomic.Pointer[func(EventList)]

	done      chan struct{}
	closeOnce sync.Once
}

// NewLive opens the rtmidi driver and starts watching for port changes
func NewLive(opts Options) (*Live, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, &InitError{Stage: StageClient, Status: StatusUnknown, Err: err}
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, &InitError{Stage: StageOutputPort, Status: StatusUnknown, Err: err}
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, &InitError{Stage: StageInputPort, Status: StatusUnknown, Err: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollRate := opts.PollInterval
	if pollRate <= 0 {
		pollRate = defaultPollRate
	}

	l := &Live{
		drv:      drv,
		log:      logger.With("component", "midi"),
		pollRate: pollRate,
		outIDs:   newPortTable(idDestination),
		inIDs:    newPortTable(idSource),
		senders:  make(map[EndpointID]func(gomidi.Message) error),
		inputs:   make(map[EndpointID]drivers.In),
		stops:    make(map[EndpointID]func()),
		lastIns:  ins,
		lastOuts: outs,
		done:     make(chan struct{}),
	}
	go l.watch(portSignature(portNames(ins), portNames(outs)))
	return l, nil
}

// scan lists ports with a timeout (CoreMIDI can hang). On timeout the
// previous lists are returned.
func (l *Live) scan() ([]drivers.In, []drivers.Out) {
	type portsResult struct {
		ins  []drivers.In
		outs []drivers.Out
		err  error
	}

	ch := make(chan portsResult, 1)
	go func() {
		ins, err := l.drv.Ins()
		if err != nil {
			ch <- portsResult{err: err}
			return
		}
		outs, err := l.drv.Outs()
		ch <- portsResult{ins: ins, outs: outs, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			l.log.Debug("port scan failed", "error", r.err)
			break
		}
		l.mu.Lock()
		l.lastIns, l.lastOuts = r.ins, r.outs
		l.mu.Unlock()
		return r.ins, r.outs
	case <-time.After(scanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		l.log.Warn("port scan timed out, MIDI service may be hung")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastIns, l.lastOuts
}

func (l *Live) watch(last string) {
	ticker := time.NewTicker(l.pollRate)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			ins, outs := l.scan()
			sig := portSignature(portNames(ins), portNames(outs))
			if sig == last {
				continue
			}
			last = sig
			l.mu.Lock()
			// open handles may belong to ports that went away
			l.senders = make(map[EndpointID]func(gomidi.Message) error)
			fn := l.onChange
			l.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
}

func (l *Live) Destinations() []Endpoint {
	_, outs := l.scan()
	names := portNames(outs)
	l.mu.Lock()
	ids := l.outIDs.assign(names)
	l.mu.Unlock()

	eps := make([]Endpoint, len(names))
	for i, name := range names {
		eps[i] = Endpoint{ID: ids[i], Name: name, IsDestination: true}
	}
	return eps
}

func (l *Live) Sources() []Endpoint {
	ins, _ := l.scan()
	names := portNames(ins)
	l.mu.Lock()
	ids := l.inIDs.assign(names)
	l.mu.Unlock()

	eps := make([]Endpoint, len(names))
	for i, name := range names {
		eps[i] = Endpoint{ID: ids[i], Name: name, IsSource: true}
	}
	return eps
}

func (l *Live) SetChangeHandler(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

func (l *Live) SetReceiveHandler(fn func(EventList)) {
	if fn == nil {
		l.onReceive.Store(nil)
		return
	}
	l.onReceive.Store(&fn)
}

func (l *Live) Send(dst EndpointID, data []byte) error {
	send, err := l.sender(dst)
	if err != nil {
		return err
	}
	return send(gomidi.Message(data))
}

func (l *Live) sender(dst EndpointID) (func(gomidi.Message) error, error) {
	l.mu.Lock()
	if s, ok := l.senders[dst]; ok {
		l.mu.Unlock()
		return s, nil
	}
	l.mu.Unlock()

	if dst&^idNumberMask != idDestination {
		return nil, fmt.Errorf("%w: %d", ErrEndpointNotFound, dst)
	}
	_, outs := l.scan()
	l.mu.Lock()
	i := l.outIDs.find(dst, portNames(outs))
	l.mu.Unlock()
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrEndpointNotFound, dst)
	}

	port := outs[i]
	s, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", port.String(), err)
	}
	l.mu.Lock()
	l.senders[dst] = s
	l.mu.Unlock()
	return s, nil
}

func (l *Live) ConnectSource(src EndpointID) error {
	if src&^idNumberMask != idSource {
		return fmt.Errorf("%w: %d", ErrEndpointNotFound, src)
	}
	l.mu.Lock()
	_, bound := l.stops[src]
	l.mu.Unlock()
	if bound {
		return nil
	}

	ins, _ := l.scan()
	l.mu.Lock()
	i := l.inIDs.find(src, portNames(ins))
	l.mu.Unlock()
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrEndpointNotFound, src)
	}

	port := ins[i]
	name := port.String()
	stop, err := gomidi.ListenTo(port, l.deliver, gomidi.HandleError(func(err error) {
		l.log.Debug("listener error", "source", name, "error", err)
	}))
	if err != nil {
		return fmt.Errorf("open input %q: %w", name, err)
	}
	l.mu.Lock()
	l.stops[src] = stop
	l.inputs[src] = port
	l.mu.Unlock()
	return nil
}

// deliver runs on the driver's callback goroutine
func (l *Live) deliver(msg gomidi.Message, timestampms int32) {
	fn := l.onReceive.Load()
	if fn == nil {
		return
	}
	w, ok := Word(0, msg)
	if !ok {
		return
	}
	(*fn)(EventList{Packets: []Packet{{
		Timestamp: uint64(timestampms),
		WordCount: 1,
		Words:     []uint32{w},
	}}})
}

func (l *Live) DisconnectSource(src EndpointID) error {
	l.mu.Lock()
	stop := l.stops[src]
	in := l.inputs[src]
	delete(l.stops, src)
	delete(l.inputs, src)
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	if in != nil {
		return in.Close()
	}
	return nil
}

func (l *Live) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.onReceive.Store(nil)

		l.mu.Lock()
		srcs := make([]EndpointID, 0, len(l.stops))
		for id := range l.stops {
			srcs = append(srcs, id)
		}
		l.mu.Unlock()
		for _, id := range srcs {
			l.DisconnectSource(id)
		}

		l.mu.Lock()
		l.senders = make(map[EndpointID]func(gomidi.Message) error)
		l.mu.Unlock()

		if cerr := l.drv.Close(); cerr != nil {
			err = fmt.Errorf("close midi driver: %w", cerr)
		}
	})
	return err
}
