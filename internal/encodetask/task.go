// Package encodetask implements the per-display Encode Task (spec.md
// §4.5): upgrades the capture task's weak display reference, builds an
// encode session via internal/avenc, publishes touch-port and HDR
// events, and drives the frame loop that turns captured images into
// packets on the shared sink.
//
// Grounded on the teacher's video.go encode loop (pop a frame, convert
// colorspace, submit to the codec, drain packets, repeat until the
// session is told to stop), generalized to the multi-display, dynamic
// encoder-selection shape spec.md §4.5 asks for.
package encodetask

import (
	"time"

	"github.com/streamcore/capture-core/internal/avenc"
	"github.com/streamcore/capture-core/internal/capturetask"
	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/controller"
	"github.com/streamcore/capture-core/internal/eventbus"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/touchport"
	"github.com/streamcore/capture-core/internal/types"
)

// Signals bundles the session-scoped event buses the encode task reads
// from and publishes to (spec.md §6, §9). Any field may be left nil
// when the caller doesn't need that signal (tests mostly don't).
type Signals struct {
	Shutdown            *eventbus.Bus[bool]
	ReinitPending       *eventbus.Bus[bool]
	InvalidateRefFrames *eventbus.Bus[types.RefFrameRange]
	RequestIDR          *eventbus.Bus[bool]
	TouchPorts          *eventbus.Bus[*touchport.Set]
	HDR                 *eventbus.Bus[types.HDRInfo]
}

// SessionFactory is the narrow surface the encode task needs from
// internal/avenc.Factory; *avenc.Factory satisfies it structurally, so
// tests can substitute a fake without going through go-astiav.
type SessionFactory interface {
	NewSession(desc registry.EncoderDescriptor, format types.VideoFormat, display types.DisplayHandle, cfg types.ClientConfig, colorspace types.Colorspace, capabilities registry.CapabilityFlags, displayIndex int16) (avenc.Session, error)
}

// Task is one display's encode loop.
type Task struct {
	Shared       *capturetask.SharedDisplay
	CaptureTask  *capturetask.Task
	Factory      SessionFactory
	Descriptor   registry.EncoderDescriptor
	Capabilities registry.CapabilityFlags
	ClientConfig types.ClientConfig
	DisplayIndex int16
	VideoConfig  *config.Video
	Ports        *touchport.Set
	Sink         types.PacketSink
	ChannelData  types.ChannelData
	Signals      Signals

	ctx *types.CaptureContext

	shutdownCh <-chan bool
	reinitCh   <-chan bool
	refFrameCh <-chan types.RefFrameRange
	idrCh      <-chan bool
	unsubs     []func()

	shuttingDown  bool
	reinitPending bool
	idrRequested  bool
}

func (t *Task) subscribe() {
	if b := t.Signals.Shutdown; b != nil {
		ch, unsub := b.Subscribe(1)
		t.shutdownCh, t.unsubs = ch, append(t.unsubs, unsub)
	}
	if b := t.Signals.ReinitPending; b != nil {
		ch, unsub := b.Subscribe(1)
		t.reinitCh, t.unsubs = ch, append(t.unsubs, unsub)
	}
	if b := t.Signals.InvalidateRefFrames; b != nil {
		ch, unsub := b.Subscribe(8)
		t.refFrameCh, t.unsubs = ch, append(t.unsubs, unsub)
	}
	if b := t.Signals.RequestIDR; b != nil {
		ch, unsub := b.Subscribe(1)
		t.idrCh, t.unsubs = ch, append(t.unsubs, unsub)
	}
}

func (t *Task) unsubscribe() {
	for _, unsub := range t.unsubs {
		unsub()
	}
}

// drainSignals applies every pending signal without blocking; called
// at the top of every loop iteration in both Run and the frame loop.
func (t *Task) drainSignals() {
	for {
		select {
		case v, ok := <-t.shutdownCh:
			if !ok {
				t.shutdownCh = nil
				continue
			}
			t.shuttingDown = t.shuttingDown || v
			continue
		case v, ok := <-t.reinitCh:
			if !ok {
				t.reinitCh = nil
				continue
			}
			t.reinitPending = v
			continue
		case v, ok := <-t.idrCh:
			if !ok {
				t.idrCh = nil
				continue
			}
			t.idrRequested = v
			continue
		default:
			return
		}
	}
}

// Run executes the encode lifecycle of spec.md §4.5 until shutdown or
// the capture context's image queue stops.
func (t *Task) Run() error {
	t.subscribe()
	defer t.unsubscribe()

	t.ctx = types.NewCaptureContext(t.ClientConfig, 4)
	t.CaptureTask.AddContext(t.ctx)
	defer t.CaptureTask.RemoveContext(t.ctx)

	for {
		t.drainSignals()
		if t.shuttingDown {
			return nil
		}
		if t.reinitPending {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		display, release := t.Shared.Acquire()
		if display == nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		err := t.runWithDisplay(display)
		release()
		if err != nil {
			return err
		}
		if t.shuttingDown || !t.ctx.Running {
			return nil
		}
		// Either session construction failed or a reinit interrupted
		// the frame loop; pace the retry rather than spinning.
		time.Sleep(20 * time.Millisecond)
	}
}

// runWithDisplay covers spec.md §4.5 steps 2-7 for one acquired
// display handle; it returns to Run's outer loop (to re-acquire) when
// session construction fails or a reinit interrupts the frame loop.
func (t *Task) runWithDisplay(display types.DisplayHandle) error {
	controller.MakePort(t.Ports, t.DisplayIndex, display, t.ClientConfig)
	if t.Signals.TouchPorts != nil {
		t.Signals.TouchPorts.Publish(t.Ports.Clone())
	}

	colorspace := types.FromClientConfig(t.ClientConfig, display.IsHDR())
	if t.Signals.HDR != nil {
		metadata, _ := display.GetHDRMetadata()
		t.Signals.HDR.Publish(types.HDRInfo{
			DisplayIndex: t.DisplayIndex,
			Enabled:      display.IsHDR(),
			Metadata:     metadata,
		})
	}

	session, err := t.Factory.NewSession(t.Descriptor, t.ClientConfig.VideoFormat, display, t.ClientConfig, colorspace, t.Capabilities, t.DisplayIndex)
	if err != nil {
		return nil // step 4: failure loops back to step 1 in Run
	}
	defer t.closeSession(session)

	if dummy, derr := display.AllocImg(); derr == nil {
		if display.DummyImg(dummy) == nil {
			_, _ = session.EncodeFrame(dummy, -1, false)
		}
	}

	return t.frameLoop(session)
}

func (t *Task) frameLoop(session avenc.Session) error {
	maxFrametime := t.maxFrametime()
	var frameIndex int64
	framesEncoded := 0

	for {
		t.drainSignals()
		t.drainInvalidateRefFrames(session)

		if t.shuttingDown {
			return nil
		}

		img, ok := t.popImage(maxFrametime)
		if !ok {
			if !t.ctx.Running {
				return nil
			}
			if t.reinitPending && framesEncoded > 0 {
				return nil
			}
			continue
		}

		forceIDR := t.idrRequested
		packets, err := session.EncodeFrame(img, frameIndex, forceIDR)
		t.CaptureTask.Release(img)
		if err != nil {
			return err
		}
		for _, pkt := range packets {
			pkt.DisplayIndex = t.DisplayIndex
			pkt.ChannelData = t.ChannelData
			t.Sink.Push(pkt)
		}
		frameIndex++
		framesEncoded++
		t.idrRequested = false

		if t.shuttingDown {
			return nil
		}
		if t.reinitPending && framesEncoded > 0 {
			return nil
		}
	}
}

func (t *Task) maxFrametime() time.Duration {
	fps := t.ClientConfig.Framerate
	if min := t.VideoConfig.MinimumFPSTarget; min > fps {
		fps = min
	}
	if fps <= 0 {
		fps = 1
	}
	return time.Duration(1000/fps) * time.Millisecond
}

func (t *Task) popImage(timeout time.Duration) (*types.Image, bool) {
	select {
	case img, ok := <-t.ctx.ImageEvents:
		return img, ok
	case <-time.After(timeout):
		return nil, false
	}
}

func (t *Task) drainInvalidateRefFrames(session avenc.Session) {
	for {
		select {
		case r, ok := <-t.refFrameCh:
			if !ok {
				t.refFrameCh = nil
				continue
			}
			if err := session.InvalidateRefFrames(r.First, r.Last); err != nil {
				t.idrRequested = true
			}
		default:
			return
		}
	}
}

func (t *Task) closeSession(session avenc.Session) {
	if t.Descriptor.Flags.Has(registry.AsyncTeardown) {
		go session.Close()
		return
	}
	session.Close()
}
