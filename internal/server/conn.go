package server

import (
	"github.com/oklog/ulid/v2"

	"github.com/jalsol/jaldis/internal/arena"
	"github.com/jalsol/jaldis/internal/resp"
)

// conn is one accepted socket's state: its file descriptor, the bump
// arena backing every allocation for the current request batch, the
// decoder rooted in that arena, and bookkeeping for the amortized
// sweep (spec.md §4.6).
type conn struct {
	fd      int
	id      string
	arena   *arena.Arena
	decoder *resp.Decoder

	// cmdsSinceSweep counts commands executed since this connection
	// last triggered a sweep; it is connection-owned state per
	// spec.md §4.6, not a server-global counter.
	cmdsSinceSweep int
}

func newConn(fd int) *conn {
	a := arena.New()
	return &conn{
		fd:      fd,
		id:      ulid.Make().String(),
		arena:   a,
		decoder: resp.NewDecoder(a),
	}
}

// idle reports whether the decoder has no partial value buffered,
// meaning the connection's arena is safe to release.
func (c *conn) idle() bool {
	return c.decoder.Idle()
}
