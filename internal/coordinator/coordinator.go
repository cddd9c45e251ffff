// Package coordinator implements the Multi-Display Coordinator
// (spec.md §4.7): owns one capture/encode task pair per client monitor
// config, and reacts to close_window/shutdown events on a 20ms poll.
//
// Grounded on the teacher's top-level session-map handling in main.go
// (a map of active per-connection sessions, torn down individually on
// a close event or entirely on shutdown), generalized from one RTSP
// session per connection to one capture+encode task pair per monitor.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/streamcore/capture-core/internal/capturetask"
	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/controller"
	"github.com/streamcore/capture-core/internal/encodetask"
	"github.com/streamcore/capture-core/internal/eventbus"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/touchport"
	"github.com/streamcore/capture-core/internal/types"
	"github.com/streamcore/capture-core/internal/vdd"
)

// Monitor is one client monitor's configuration: which display to
// capture (by output_name) and the encode request for it. Virtual
// marks a monitor backed by a virtual-display driver (SPEC_FULL.md
// §L.5), so Run knows to bring the driver up before starting its
// session and tear it down once no virtual monitor remains.
type Monitor struct {
	OutputName   string
	DisplayIndex int16
	ClientConfig types.ClientConfig
	Virtual      bool
}

// Coordinator owns every active (capture task, encode task) pair and
// reacts to close_window/shutdown events (spec.md §4.7).
type Coordinator struct {
	Enumerate  controller.Enumerator
	Factory      encodetask.SessionFactory
	Descriptor   registry.EncoderDescriptor
	Capabilities registry.CapabilityFlags
	VideoConfig  *config.Video
	Sink       types.PacketSink

	// NameCache and HwdeviceType let every session's capture task share
	// one display-name LRU (SPEC_FULL.md §L.4); optional.
	NameCache    *controller.NameCache
	HwdeviceType string

	Ports      *touchport.Set
	TouchPorts *eventbus.Bus[*touchport.Set]
	HDR        *eventbus.Bus[types.HDRInfo]

	CloseWindow *eventbus.Bus[int16]
	Shutdown    *eventbus.Bus[bool]

	// VDD is the virtual-display collaborator (SPEC_FULL.md §L.5);
	// defaults to vdd.NullService when unset.
	VDD vdd.Service

	mu        sync.Mutex
	sessions  map[int16]*session
	virtualUp bool
}

type session struct {
	displayIndex int16
	virtual      bool
	shutdown     *eventbus.Bus[bool]
	switchDisp   *eventbus.Bus[int32]
	capture      *capturetask.Task
	encode       *encodetask.Task
	captureDone  chan error
	encodeDone   chan error
}

// Run starts a capture/encode pair for every monitor, then polls
// CloseWindow/Shutdown every 20ms until shutdown fires, tearing down
// whatever sessions remain at exit.
func (c *Coordinator) Run(monitors []Monitor) error {
	if c.Ports == nil {
		c.Ports = touchport.NewSet()
	}
	if c.VDD == nil {
		c.VDD = vdd.NullService{}
	}
	c.sessions = make(map[int16]*session, len(monitors))
	for _, m := range monitors {
		if m.Virtual && !c.virtualUp {
			if err := c.VDD.Enable(context.Background()); err != nil {
				return err
			}
			c.virtualUp = true
		}
		c.startSession(m)
	}

	closeCh, unsubClose := c.CloseWindow.Subscribe(4)
	shutdownCh, unsubShutdown := c.Shutdown.Subscribe(1)
	defer unsubClose()
	defer unsubShutdown()

	for {
		select {
		case idx := <-closeCh:
			c.handleCloseWindow(idx)
		case v := <-shutdownCh:
			if v {
				c.teardownAll()
				return nil
			}
		default:
			time.Sleep(20 * time.Millisecond)
		}
	}
}

func (c *Coordinator) startSession(m Monitor) {
	shutdownBus := eventbus.New[bool]()
	switchBus := eventbus.New[int32]()
	reinitBus := eventbus.New[bool]()
	refFrameBus := eventbus.New[types.RefFrameRange]()
	idrBus := eventbus.New[bool]()

	capture := capturetask.New(c.Enumerate, m.OutputName, shutdownBus, switchBus)
	capture.NameCache = c.NameCache
	capture.HwdeviceType = c.HwdeviceType
	encode := &encodetask.Task{
		Shared:       capture.Shared,
		CaptureTask:  capture,
		Factory:      c.Factory,
		Descriptor:   c.Descriptor,
		Capabilities: c.Capabilities,
		ClientConfig: m.ClientConfig,
		DisplayIndex: m.DisplayIndex,
		VideoConfig:  c.VideoConfig,
		Ports:        c.Ports,
		Sink:         c.Sink,
		Signals: encodetask.Signals{
			Shutdown:            shutdownBus,
			ReinitPending:       reinitBus,
			InvalidateRefFrames: refFrameBus,
			RequestIDR:          idrBus,
			TouchPorts:          c.TouchPorts,
			HDR:                 c.HDR,
		},
	}

	s := &session{
		displayIndex: m.DisplayIndex,
		virtual:      m.Virtual,
		shutdown:     shutdownBus,
		switchDisp:   switchBus,
		capture:      capture,
		encode:       encode,
		captureDone:  make(chan error, 1),
		encodeDone:   make(chan error, 1),
	}

	go func() { s.captureDone <- capture.Run() }()
	go func() { s.encodeDone <- encode.Run() }()

	c.mu.Lock()
	c.sessions[m.DisplayIndex] = s
	c.mu.Unlock()
}

// handleCloseWindow implements spec.md §4.7 step 2's close_window
// handling: a no-op when only one session remains, since the owning
// caller handles shutdown for the single-display case.
func (c *Coordinator) handleCloseWindow(idx int16) {
	c.mu.Lock()
	if len(c.sessions) <= 1 {
		c.mu.Unlock()
		return
	}
	s, ok := c.sessions[idx]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, idx)
	c.disableVDDIfNoVirtualSessionsLocked()
	c.mu.Unlock()

	s.stop()
	controller.RemovePort(c.Ports, idx)
	if c.TouchPorts != nil {
		c.TouchPorts.Publish(c.Ports.Clone())
	}
}

// disableVDDIfNoVirtualSessionsLocked disables the virtual-display
// driver once the last virtual monitor's session is gone; callers must
// hold c.mu.
func (c *Coordinator) disableVDDIfNoVirtualSessionsLocked() {
	if !c.virtualUp {
		return
	}
	for _, s := range c.sessions {
		if s.virtual {
			return
		}
	}
	c.virtualUp = false
	go c.VDD.Disable(context.Background())
}

func (c *Coordinator) teardownAll() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[int16]*session)
	wasUp := c.virtualUp
	c.virtualUp = false
	c.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	if wasUp {
		c.VDD.Disable(context.Background())
	}
}

func (s *session) stop() {
	s.shutdown.Publish(true)
	<-s.captureDone
	<-s.encodeDone
	s.capture.Close()
}
