// Package resp implements a streaming, arena-backed codec for the
// Redis Serialization Protocol (RESP): an incremental decoder that
// consumes arbitrary byte chunks and yields complete protocol values,
// and an encoder that serializes values back to bytes.
package resp

// Type tags the five RESP value alternatives. Dispatch on Value is by
// tag, not by method set, mirroring the closed sum type in the
// original implementation (resp::Type variant).
type Type uint8

const (
	SimpleString Type = iota
	Error
	Integer
	BulkString
	Array
)

// NullBulk is the literal payload this server uses as its "no value"
// sentinel. It is not the standard RESP null bulk ($-1\r\n); it is a
// deliberate behavioral quirk inherited from the original
// implementation and must be reproduced for parity (spec.md §9).
const NullBulk = "(nil)"

// Value is the RESP sum type. Str and Bytes are owned by whatever
// Arena produced them (or, for values built by command handlers, the
// connection's per-batch arena); the Value struct itself is cheap to
// copy. Elems is a plain Go slice of Values (the container, not the
// payload bytes each Value holds) and is not itself arena-allocated.
type Value struct {
	Tag   Type
	Str   string  // SimpleString, Error: the line text
	Int   int64   // Integer
	Bytes []byte  // BulkString: payload, possibly empty but non-nil unless it is the null bulk marker
	Elems []Value // Array: ordered elements

	null bool // BulkString null-bulk marker (only reachable internally; see NewNullBulk)
}

// NewSimpleString builds a SimpleString value.
func NewSimpleString(s string) Value { return Value{Tag: SimpleString, Str: s} }

// NewError builds an Error value.
func NewError(s string) Value { return Value{Tag: Error, Str: s} }

// NewInteger builds an Integer value.
func NewInteger(n int64) Value { return Value{Tag: Integer, Int: n} }

// NewBulkString builds a BulkString value from arbitrary (possibly
// empty, possibly nil) bytes.
func NewBulkString(b []byte) Value { return Value{Tag: BulkString, Bytes: b} }

// NewBulkStringFromString builds a BulkString value from a string,
// useful when a handler already has a Go string and wants to avoid a
// manual []byte(s) conversion at the call site.
func NewBulkStringFromString(s string) Value {
	return Value{Tag: BulkString, Bytes: []byte(s)}
}

// NewArray builds an Array value.
func NewArray(elems []Value) Value { return Value{Tag: Array, Elems: elems} }

// IsNullBulk reports whether v is the standard RESP null-bulk marker
// ($-1\r\n on the wire). This server's command handlers never produce
// one (they emit the (nil) literal instead, per spec.md §9), but the
// encoder still supports it for completeness and the decoder treats a
// negative bulk length on the wire as cancellation, never as this
// marker (spec.md §4.1).
func (v Value) IsNullBulk() bool { return v.Tag == BulkString && v.null }

// NullBulkValue constructs the standard RESP null bulk sentinel value,
// encoded as $-1\r\n. It exists for encoder completeness; command
// handlers in this server use the (nil) literal bulk string instead.
func NullBulkValue() Value { return Value{Tag: BulkString, null: true} }
