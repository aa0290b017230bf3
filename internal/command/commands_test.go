package command

import (
	"testing"

	"github.com/jalsol/jaldis/internal/arena"
	"github.com/jalsol/jaldis/internal/keyspace"
	"github.com/jalsol/jaldis/internal/resp"
)

func bulk(s string) resp.Value {
	return resp.NewBulkStringFromString(s)
}

func run(t *testing.T, ks *keyspace.Keyspace, a *arena.Arena, name string, args ...resp.Value) resp.Value {
	t.Helper()
	return Dispatch(name, args, ks, a)
}

func TestPingWithAndWithoutArg(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "PING")
	if got.Tag != resp.SimpleString || got.Str != "PONG" {
		t.Fatalf("PING = %+v, want SimpleString PONG", got)
	}

	got = run(t, ks, a, "PING", bulk("hello"))
	if got.Tag != resp.BulkString || string(got.Bytes) != "hello" {
		t.Fatalf("PING hello = %+v, want BulkString hello", got)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "SET", bulk("k"), bulk("v"))
	if got.Tag != resp.SimpleString || got.Str != "OK" {
		t.Fatalf("SET = %+v, want OK", got)
	}

	got = run(t, ks, a, "GET", bulk("k"))
	if got.Tag != resp.BulkString || string(got.Bytes) != "v" {
		t.Fatalf("GET = %+v, want BulkString v", got)
	}
}

func TestGetMissingKeyReturnsNilSentinel(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "GET", bulk("missing"))
	if got.Tag != resp.BulkString || string(got.Bytes) != resp.NullBulk {
		t.Fatalf("GET missing = %+v, want BulkString %q", got, resp.NullBulk)
	}
}

func TestSetOverwritesAcrossTypes(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	run(t, ks, a, "RPUSH", bulk("k"), bulk("a"))
	got := run(t, ks, a, "SET", bulk("k"), bulk("v"))
	if got.Tag != resp.SimpleString || got.Str != "OK" {
		t.Fatalf("SET over a list = %+v, want OK", got)
	}
	got = run(t, ks, a, "GET", bulk("k"))
	if string(got.Bytes) != "v" {
		t.Fatalf("GET after overwrite = %+v, want v", got)
	}
}

func TestDelCountsOnlyRemoved(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "SET", bulk("a"), bulk("1"))

	got := run(t, ks, a, "DEL", bulk("a"), bulk("b"))
	if got.Tag != resp.Integer || got.Int != 1 {
		t.Fatalf("DEL = %+v, want Integer 1", got)
	}
}

func TestLlenOnWrongTypeReturnsWrongType(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "SET", bulk("k"), bulk("v"))

	got := run(t, ks, a, "LLEN", bulk("k"))
	if got.Tag != resp.Error || got.Str != "WRONGTYPE Operation against a key holding the wrong kind of value" {
		t.Fatalf("LLEN on string = %+v, want WRONGTYPE error", got)
	}
}

func TestRpushLlenLrange(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "RPUSH", bulk("l"), bulk("a"), bulk("b"))
	if got.Tag != resp.Integer || got.Int != 2 {
		t.Fatalf("RPUSH = %+v, want Integer 2", got)
	}

	got = run(t, ks, a, "LRANGE", bulk("l"), bulk("0"), bulk("-1"))
	if got.Tag != resp.Array || len(got.Elems) != 2 {
		t.Fatalf("LRANGE = %+v, want 2-element Array", got)
	}
	if string(got.Elems[0].Bytes) != "a" || string(got.Elems[1].Bytes) != "b" {
		t.Fatalf("LRANGE elements = %+v, want [a b]", got.Elems)
	}
}

func TestLpushInsertsEachArgAtFront(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	run(t, ks, a, "LPUSH", bulk("l"), bulk("a"), bulk("b"), bulk("c"))
	got := run(t, ks, a, "LRANGE", bulk("l"), bulk("0"), bulk("-1"))
	want := []string{"c", "b", "a"}
	if len(got.Elems) != len(want) {
		t.Fatalf("LRANGE len = %d, want %d", len(got.Elems), len(want))
	}
	for i, w := range want {
		if string(got.Elems[i].Bytes) != w {
			t.Fatalf("element %d = %q, want %q", i, got.Elems[i].Bytes, w)
		}
	}
}

func TestLpopWithoutCountOnEmptyReturnsNil(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "LPOP", bulk("missing"))
	if got.Tag != resp.BulkString || string(got.Bytes) != resp.NullBulk {
		t.Fatalf("LPOP missing = %+v, want nil bulk", got)
	}
}

func TestLpopWithExplicitCountOnMissingKeyReturnsNil(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "LPOP", bulk("missing"), bulk("3"))
	if got.Tag != resp.BulkString || string(got.Bytes) != resp.NullBulk {
		t.Fatalf("LPOP missing count=3 = %+v, want nil bulk", got)
	}
}

func TestLpopWithExplicitZeroCountReturnsEmptyArray(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "RPUSH", bulk("l"), bulk("a"))

	got := run(t, ks, a, "LPOP", bulk("l"), bulk("0"))
	if got.Tag != resp.Array || len(got.Elems) != 0 {
		t.Fatalf("LPOP count=0 = %+v, want empty Array", got)
	}
}

func TestRpopMostRecentFirst(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "RPUSH", bulk("l"), bulk("a"), bulk("b"), bulk("c"))

	got := run(t, ks, a, "RPOP", bulk("l"), bulk("2"))
	if got.Tag != resp.Array || len(got.Elems) != 2 {
		t.Fatalf("RPOP count=2 = %+v", got)
	}
	if string(got.Elems[0].Bytes) != "c" || string(got.Elems[1].Bytes) != "b" {
		t.Fatalf("RPOP elements = %+v, want [c b]", got.Elems)
	}
}

func TestSaddSremScard(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "SADD", bulk("s"), bulk("x"), bulk("y"))
	if got.Tag != resp.Integer || got.Int != 2 {
		t.Fatalf("SADD = %+v, want Integer 2", got)
	}
	got = run(t, ks, a, "SADD", bulk("s"), bulk("x"))
	if got.Int != 0 {
		t.Fatalf("SADD duplicate = %+v, want Integer 0", got)
	}
	got = run(t, ks, a, "SCARD", bulk("s"))
	if got.Int != 2 {
		t.Fatalf("SCARD = %+v, want Integer 2", got)
	}
	got = run(t, ks, a, "SREM", bulk("s"), bulk("x"))
	if got.Int != 1 {
		t.Fatalf("SREM = %+v, want Integer 1", got)
	}
}

func TestSinterAcrossSets(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "SADD", bulk("s1"), bulk("a"), bulk("b"), bulk("c"))
	run(t, ks, a, "SADD", bulk("s2"), bulk("b"), bulk("c"), bulk("d"))

	got := run(t, ks, a, "SINTER", bulk("s1"), bulk("s2"))
	if got.Tag != resp.Array || len(got.Elems) != 2 {
		t.Fatalf("SINTER = %+v, want 2-element Array", got)
	}
}

func TestSinterMissingSetIsEmpty(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "SADD", bulk("s1"), bulk("a"))

	got := run(t, ks, a, "SINTER", bulk("s1"), bulk("missing"))
	if got.Tag != resp.Array || len(got.Elems) != 0 {
		t.Fatalf("SINTER with missing set = %+v, want empty Array", got)
	}
}

func TestExpireAndTtl(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "SET", bulk("k"), bulk("v"))

	got := run(t, ks, a, "TTL", bulk("k"))
	if got.Int != -1 {
		t.Fatalf("TTL before EXPIRE = %+v, want -1", got)
	}

	got = run(t, ks, a, "EXPIRE", bulk("k"), bulk("100"))
	if got.Int != 1 {
		t.Fatalf("EXPIRE = %+v, want Integer 1", got)
	}

	got = run(t, ks, a, "TTL", bulk("k"))
	if got.Int < 0 || got.Int > 100 {
		t.Fatalf("TTL after EXPIRE = %+v, want in [0, 100]", got)
	}

	got = run(t, ks, a, "TTL", bulk("missing"))
	if got.Int != -2 {
		t.Fatalf("TTL missing = %+v, want -2", got)
	}
}

func TestExpireRejectsNegativeSeconds(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()
	run(t, ks, a, "SET", bulk("k"), bulk("v"))

	got := run(t, ks, a, "EXPIRE", bulk("k"), bulk("-5"))
	if got.Tag != resp.Error {
		t.Fatalf("EXPIRE negative = %+v, want Error", got)
	}
}

func TestUnknownCommandError(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "BOGUS")
	if got.Tag != resp.Error || got.Str != "ERR unknown command 'BOGUS'" {
		t.Fatalf("Dispatch unknown = %+v", got)
	}
}

func TestWrongArgcShape(t *testing.T) {
	ks := keyspace.New()
	a := arena.New()

	got := run(t, ks, a, "GET")
	if got.Tag != resp.Error || got.Str != "ERR wrong number of arguments for 'GET' command" {
		t.Fatalf("GET with no args = %+v", got)
	}
}
