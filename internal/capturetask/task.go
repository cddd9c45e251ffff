// Package capturetask implements the per-display Capture Task
// (spec.md §4.4): owns the display handle exclusively, fans captured
// images out to every subscribed CaptureContext, and handles the
// capture backend's reinit protocol.
//
// Grounded on the teacher's camera.go goroutine loop (a dedicated
// goroutine blocking on the capture primitive, broadcasting frames to
// subscriber callbacks) generalized from a single camera source with
// one subscriber into a display handle with many.
package capturetask

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamcore/capture-core/internal/controller"
	"github.com/streamcore/capture-core/internal/eventbus"
	"github.com/streamcore/capture-core/internal/imagepool"
	"github.com/streamcore/capture-core/internal/types"
)

// PoolCapacity is the default number of Images a Task keeps alive
// between the free list and outstanding subscriber hands (spec.md
// §9's pool sizing note).
const PoolCapacity = 12

// Task is one display's capture loop.
type Task struct {
	Enumerate  controller.Enumerator
	OutputName string

	// NameCache and HwdeviceType are optional: when set, a successful
	// reinit remembers the resolved display name under this hwdevice
	// type (SPEC_FULL.md §L.4), so a later reinit that can't find the
	// previously-selected name prefers a recently-seen one over a
	// blind index fallback.
	NameCache    *controller.NameCache
	HwdeviceType string

	Shared *SharedDisplay

	shutdownCh <-chan bool
	unsubShut  func()
	switchCh   <-chan int32
	unsubSwi   func()

	mu       sync.Mutex
	contexts []*types.CaptureContext

	poolMu      sync.Mutex
	pool        *imagepool.Pool
	display     types.DisplayHandle
	outstanding int

	shuttingDown    atomic.Bool
	switchRequested atomic.Bool
	switchIdx       atomic.Int32
}

// New builds a Task subscribed to shutdownBus and switchDisplayBus.
// Call Close when the task's Run loop returns to unsubscribe.
func New(enumerate controller.Enumerator, outputName string, shutdownBus *eventbus.Bus[bool], switchDisplayBus *eventbus.Bus[int32]) *Task {
	t := &Task{
		Enumerate:  enumerate,
		OutputName: outputName,
		Shared:     &SharedDisplay{},
	}
	t.shutdownCh, t.unsubShut = shutdownBus.Subscribe(1)
	t.switchCh, t.unsubSwi = switchDisplayBus.Subscribe(1)
	go t.watchSignals()
	return t
}

func (t *Task) watchSignals() {
	for {
		select {
		case v, ok := <-t.shutdownCh:
			if !ok {
				return
			}
			if v {
				t.shuttingDown.Store(true)
			}
		case idx, ok := <-t.switchCh:
			if !ok {
				continue
			}
			t.switchIdx.Store(idx)
			t.switchRequested.Store(true)
		}
	}
}

// Close unsubscribes from the event buses; call once Run has returned.
func (t *Task) Close() {
	if t.unsubShut != nil {
		t.unsubShut()
	}
	if t.unsubSwi != nil {
		t.unsubSwi()
	}
	t.poolMu.Lock()
	if t.pool != nil {
		t.pool.Close()
	}
	t.poolMu.Unlock()
}

// Release returns img to the pool once its last subscriber is done
// with it. Callers (the encode task, or any other CaptureContext
// consumer) must call this exactly once per image they received off
// ImageEvents.
func (t *Task) Release(img *types.Image) {
	if img.Release() > 0 {
		return
	}
	t.putBack(img)
}

func (t *Task) putBack(img *types.Image) {
	t.poolMu.Lock()
	defer t.poolMu.Unlock()
	if t.pool != nil {
		t.pool.Put(img)
	}
	if t.outstanding > 0 {
		t.outstanding--
	}
}

// AddContext registers a new fan-out subscriber; may be called while
// Run is active (spec.md §4.4's "shared, bounded FIFO of capture
// contexts... to allow additional subscribers to be added live").
func (t *Task) AddContext(ctx *types.CaptureContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.contexts = append(t.contexts, ctx)
}

// RemoveContext stops fanning images out to ctx.
func (t *Task) RemoveContext(ctx *types.CaptureContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.contexts {
		if c == ctx {
			t.contexts = append(t.contexts[:i], t.contexts[i+1:]...)
			break
		}
	}
}

// Run executes the capture lifecycle of spec.md §4.4 until shutdown,
// a terminal capture status, or an unrecoverable display-acquisition
// failure.
func (t *Task) Run() error {
	display, err := controller.ResetDisplay(t.Enumerate, t.OutputName)
	if err != nil {
		return err
	}
	t.Shared.Publish(display)
	t.poolMu.Lock()
	t.display = display
	t.pool = imagepool.New(display.Width(), display.Height(), display.Width()*4)
	t.poolMu.Unlock()
	if t.NameCache != nil {
		t.NameCache.Remember(t.HwdeviceType, display.Name())
	}

	for {
		if t.shuttingDown.Load() {
			t.stopAllContexts()
			return nil
		}
		status := display.Capture(t.push, t.pull, types.CursorState{})
		switch status {
		case types.CaptureStatusOK:
			continue
		case types.CaptureStatusReinit, types.CaptureStatusInterrupted:
			if t.shuttingDown.Load() {
				t.stopAllContexts()
				return nil
			}
			// Our synthetic backend has no independent OS-level reinit
			// signal, so every non-shutdown interruption is treated as
			// a reinit request too (spec.md §4.4 step 6).
			next, err := t.reinit(display)
			if err != nil {
				return err
			}
			display = next
		default:
			t.stopAllContexts()
			return nil
		}
	}
}

// reinit implements spec.md §4.4 step 6's "reinit" branch: drop the
// pool, wait for the shared slot to have no outstanding strong
// references, re-enumerate, and republish. Returns the newly
// published handle.
func (t *Task) reinit(previous types.DisplayHandle) (types.DisplayHandle, error) {
	t.poolMu.Lock()
	if t.pool != nil {
		t.pool.Close()
		t.pool = nil
	}
	t.outstanding = 0
	t.poolMu.Unlock()
	for t.Shared.Strong() > 0 {
		time.Sleep(20 * time.Millisecond)
	}

	name := previous.Name()
	if t.switchRequested.Load() {
		name = "" // an explicit index-based switch overrides name preservation
	}
	var result *controller.RefreshResult
	var err error
	if t.NameCache != nil {
		result, err = controller.RefreshDisplaysWithCache(t.Enumerate, name, int(t.switchIdx.Load()), t.NameCache, t.HwdeviceType)
	} else {
		result, err = controller.RefreshDisplays(t.Enumerate, name, int(t.switchIdx.Load()))
	}
	if err != nil {
		return nil, err
	}
	var next types.DisplayHandle
	if result == nil {
		next = previous
	} else {
		displays, err := t.Enumerate()
		if err != nil {
			return nil, err
		}
		idx := result.SelectedIdx
		if idx < 0 || idx >= len(displays) {
			idx = 0
		}
		next = displays[idx]
	}

	t.Shared.Publish(next)
	t.poolMu.Lock()
	t.display = next
	t.pool = imagepool.New(next.Width(), next.Height(), next.Width()*4)
	t.poolMu.Unlock()
	t.switchRequested.Store(false)
	if t.NameCache != nil {
		t.NameCache.Remember(t.HwdeviceType, next.Name())
	}
	return next, nil
}

func (t *Task) stopAllContexts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.contexts {
		c.Running = false
		close(c.ImageEvents)
	}
}

// push is the capture backend's push_cb (spec.md §4.4 step 5): fan out
// to every running context, dropping on a full queue, and returns
// false to request the backend stop when shutdown or switch-display
// fires. An image nobody accepted is returned to the pool immediately
// since no subscriber will call Release on it.
func (t *Task) push(img *types.Image, captured bool) bool {
	if t.shuttingDown.Load() {
		return false
	}
	if captured {
		delivered := 0
		t.mu.Lock()
		for _, ctx := range t.contexts {
			if !ctx.Running {
				continue
			}
			img.AddRef()
			select {
			case ctx.ImageEvents <- img:
				delivered++
			default:
				img.Release()
			}
		}
		t.mu.Unlock()
		if delivered == 0 {
			t.putBack(img)
		}
	}
	if t.switchRequested.Load() {
		return false
	}
	return true
}

// pull is the capture backend's pull_cb (spec.md §4.4 step 5): hand
// back a free pooled image, or allocate a fresh one up to
// PoolCapacity outstanding, polling every 1ms once the cap is hit.
func (t *Task) pull() (*types.Image, bool) {
	for {
		t.poolMu.Lock()
		pool, display := t.pool, t.display
		if img := pool.Get(); img != nil {
			t.poolMu.Unlock()
			return img, true
		}
		if t.outstanding < PoolCapacity {
			img, err := display.AllocImg()
			if err == nil {
				t.outstanding++
				t.poolMu.Unlock()
				return img, true
			}
		}
		t.poolMu.Unlock()

		if t.shuttingDown.Load() {
			return nil, false
		}
		time.Sleep(time.Millisecond)
	}
}
