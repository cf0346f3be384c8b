package player

import (
	"image"
	"sync"
)

// FrameBuffer holds the most recent RGBA frame. Writers copy into it,
// readers access it under a read lock.
type FrameBuffer struct {
	mu  sync.RWMutex
	seq uint64
	img *image.RGBA
}

// Put copies src into the buffer and returns the new sequence number.
func (b *FrameBuffer) Put(src *image.RGBA) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.img == nil || b.img.Rect != src.Rect || b.img.Stride != src.Stride {
		b.img = &image.RGBA{
			Pix:    make([]byte, len(src.Pix)),
			Stride: src.Stride,
			Rect:   src.Rect,
		}
	}
	copy(b.img.Pix, src.Pix)
	b.seq++
	return b.seq
}

// ReadFrame calls fn with the current frame while holding the read lock.
// fn is not called when no frame was put yet. img must not be retained.
func (b *FrameBuffer) ReadFrame(fn func(img *image.RGBA, seq uint64)) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.seq == 0 {
		return
	}
	fn(b.img, b.seq)
}

// Seq returns the number of frames put so far.
func (b *FrameBuffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}
