// Package command holds the dispatch table and handler implementations
// for every command the server understands.
package command

import (
	"fmt"

	"github.com/jalsol/jaldis/internal/arena"
	"github.com/jalsol/jaldis/internal/keyspace"
	"github.com/jalsol/jaldis/internal/resp"
)

// Handler is a pure function from (args, keyspace, arena) to a reply
// Value. Implementations must not retain references into args after
// returning: args live in the caller's decoder arena region, which is
// about to be written out and reset.
type Handler func(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value

type entry struct {
	name string
	fn   Handler
}

// table is frequency-ordered: the commands a typical workload issues
// most often come first, since Dispatch scans linearly.
var table = []entry{
	{"GET", handleGet},
	{"SET", handleSet},
	{"DEL", handleDel},
	{"PING", handlePing},
	{"KEYS", handleKeys},
	{"FLUSHDB", handleFlushdb},
	{"LPUSH", handleLpush},
	{"RPUSH", handleRpush},
	{"LPOP", handleLpop},
	{"RPOP", handleRpop},
	{"LLEN", handleLlen},
	{"LRANGE", handleLrange},
	{"SADD", handleSadd},
	{"SREM", handleSrem},
	{"SCARD", handleScard},
	{"SMEMBERS", handleSmembers},
	{"SINTER", handleSinter},
	{"SISMEMBER", handleSismember},
	{"EXPIRE", handleExpire},
	{"TTL", handleTtl},
}

func init() {
	seen := make(map[string]bool, len(table))
	for _, e := range table {
		if !isUppercaseASCII(e.name) {
			panic(fmt.Sprintf("command: %q is not uppercase ASCII", e.name))
		}
		if seen[e.name] {
			panic(fmt.Sprintf("command: duplicate registration for %q", e.name))
		}
		seen[e.name] = true
	}
}

func isUppercaseASCII(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Dispatch looks up name (case-sensitive, no implicit uppercasing)
// and invokes its handler. An unknown name yields an Error Value
// rather than a Go error, since the reply must flow back to the
// client as a protocol value.
func Dispatch(name string, args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	for _, e := range table {
		if e.name == name {
			return e.fn(args, ks, a)
		}
	}
	return resp.NewError(fmt.Sprintf("ERR unknown command '%s'", name))
}
