// Package arena implements a scoped bump allocator for per-connection
// request batches.
//
// Each connection owns exactly one Arena, reused across request
// batches. Allocate never fails and never frees individually; Release
// invalidates every byte handed out since the last Release in one
// step. Callers must never retain an Arena-backed slice past the next
// Release.
package arena

// defaultBlockSize is the capacity of the first block allocated for a
// fresh Arena, matching the original implementation's small initial
// buffer (§4.6 of the spec: "fixed-capacity bump region, e.g. 8 KiB").
const defaultBlockSize = 8 * 1024

// Arena is a bump allocator over a growable list of blocks. It is not
// safe for concurrent use; each connection owns its own Arena and
// drives it from a single goroutine.
type Arena struct {
	blocks []block
	cur    int // index of the block currently being bumped
}

type block struct {
	buf []byte
	off int
}

// New creates an Arena with one pre-allocated block.
func New() *Arena {
	a := &Arena{}
	a.blocks = append(a.blocks, block{buf: make([]byte, 0, defaultBlockSize)})
	return a
}

// Alloc returns a slice of length n backed by the arena. The returned
// slice is only valid until the next Release.
func (a *Arena) Alloc(n int) []byte {
	b := &a.blocks[a.cur]
	if cap(b.buf)-len(b.buf) < n {
		a.growFor(n)
		b = &a.blocks[a.cur]
	}
	start := len(b.buf)
	b.buf = b.buf[:start+n]
	return b.buf[start : start+n : start+n]
}

// Append copies src into the arena and returns the arena-owned copy.
func (a *Arena) Append(src []byte) []byte {
	dst := a.Alloc(len(src))
	copy(dst, src)
	return dst
}

// AppendString copies s into the arena and returns the arena-owned
// bytes backing it.
func (a *Arena) AppendString(s string) []byte {
	dst := a.Alloc(len(s))
	copy(dst, s)
	return dst
}

// Buffer is a growable byte accumulator backed by an Arena. Each
// growth reallocates a fresh arena block and copies the live prefix
// into it, mirroring how a pmr::string reallocates against its
// upstream memory_resource: old storage simply becomes garbage until
// the next Release.
type Buffer struct {
	a   *Arena
	buf []byte
}

// NewBuffer creates an empty Buffer drawing from a.
func NewBuffer(a *Arena) *Buffer { return &Buffer{a: a} }

// Append copies p onto the end of the buffer, growing as needed.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if len(b.buf)+len(p) <= cap(b.buf) {
		b.buf = append(b.buf, p...)
		return
	}
	newCap := cap(b.buf) * 2
	if need := len(b.buf) + len(p); newCap < need {
		newCap = need
	}
	if newCap < 32 {
		newCap = 32
	}
	next := b.a.Alloc(newCap)[:len(b.buf)]
	copy(next, b.buf)
	b.buf = append(next, p...)
}

// Bytes returns the buffer's current contents. The slice is only
// valid until the next Release of the owning Arena.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of bytes accumulated so far.
func (b *Buffer) Len() int { return len(b.buf) }

// Reset empties the buffer without releasing its arena storage.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

func (a *Arena) growFor(n int) {
	size := defaultBlockSize
	for size < n {
		size *= 2
	}
	a.blocks = append(a.blocks, block{buf: make([]byte, 0, size)})
	a.cur = len(a.blocks) - 1
}

// Release invalidates every allocation made since the arena was
// created or last released. It must never be called while a partial
// parse still references arena bytes (spec.md §4.6).
func (a *Arena) Release() {
	if len(a.blocks) == 1 {
		a.blocks[0].off = 0
		a.blocks[0].buf = a.blocks[0].buf[:0]
		return
	}

	// Collapse back down to a single block sized to fit everything
	// that was live across the batch, so repeated multi-block growth
	// doesn't pin memory forever.
	total := 0
	for _, b := range a.blocks {
		total += cap(b.buf)
	}
	a.blocks = a.blocks[:1]
	a.blocks[0].buf = make([]byte, 0, total)
	a.blocks[0].off = 0
	a.cur = 0
}
