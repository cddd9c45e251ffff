// Package imagepool recycles capture-side Image buffers so the
// capture task doesn't allocate a fresh buffer on every frame
// (spec.md §4.1, §9). Idle buffers beyond a grace period are dropped
// on a background ticker, mirroring the cleanup-loop shape of the
// teacher pack's ring buffer (Prodro21's pkg/ringbuffer/buffer.go
// cleanupLoop/cleanup pair), adapted from time-bounded segment
// retention to a free-list trim.
package imagepool

import (
	"context"
	"sync"
	"time"

	"github.com/streamcore/capture-core/internal/types"
)

// IdleTimeout is how long a returned-but-unused Image may sit in the
// free list before Pool's trim loop releases it, resolving spec.md
// §9's note that the pool should not grow without bound across a long
// idle period between client connections.
const IdleTimeout = 3 * time.Second

type entry struct {
	img       *types.Image
	returnedAt time.Time
}

// Pool holds Images sized for one (width, height, rowPitch) capture
// configuration. A capture task owns exactly one Pool; reinit
// (spec.md §4.1 "switch_display"/resolution change) replaces it
// wholesale rather than resizing it in place.
type Pool struct {
	width, height, rowPitch int

	mu   sync.Mutex
	free []entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Pool for images of the given shape and starts its
// background idle-trim loop.
func New(width, height, rowPitch int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{width: width, height: height, rowPitch: rowPitch, cancel: cancel}
	p.wg.Add(1)
	go p.trimLoop(ctx)
	return p
}

// Get returns a free Image if one is available, or nil if the caller
// must allocate a new one via the DisplayHandle.
func (p *Pool) Get() *types.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil
	}
	last := len(p.free) - 1
	img := p.free[last].img
	p.free = p.free[:last]
	return img
}

// Put returns img to the pool if it matches this Pool's shape;
// otherwise it is dropped (the caller let it go out of scope), which
// is the correct behavior right after a reinit swaps in a new Pool.
func (p *Pool) Put(img *types.Image) {
	if img == nil {
		return
	}
	if img.Width != p.width || img.Height != p.height || img.RowPitch != p.rowPitch {
		return
	}
	if img.RefCount() > 0 {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, entry{img: img, returnedAt: time.Now()})
	p.mu.Unlock()
}

// Close stops the trim loop. Outstanding Images already handed out
// are unaffected; they simply won't be accepted back by Put once the
// pool's shape is superseded.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) trimLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(IdleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trim()
		}
	}
}

func (p *Pool) trim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-IdleTimeout)
	kept := p.free[:0]
	for _, e := range p.free {
		if e.returnedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	p.free = kept
}

// Len reports the number of Images currently held free, for tests and
// diagnostics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
