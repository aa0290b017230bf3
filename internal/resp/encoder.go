package resp

import (
	"strconv"

	"github.com/jalsol/jaldis/internal/arena"
)

// Serialize computes the exact encoded size of v in one pre-pass and
// appends the encoding to buf in a second pass, returning the grown
// slice. The pre-pass lets callers size a single allocation per
// response instead of repeated append-driven growth (spec.md §4.2).
func Serialize(v Value, buf []byte) []byte {
	n := len(buf) + encodedSize(v)
	if cap(buf) < n {
		grown := make([]byte, len(buf), n)
		copy(grown, buf)
		buf = grown
	}
	return appendValue(buf, v)
}

var crlf = []byte{'\r', '\n'}

// AppendValue serializes v directly onto buf, an arena-backed Buffer.
// Unlike Serialize, which sizes and fills a fresh heap slice, this
// writes through Buffer.Append so the encoded reply lives in the same
// arena as everything else in the write batch (spec.md §4.7 step 2).
// Integers are formatted into a stack scratch array rather than
// through strconv.AppendInt's own heap-growing slice.
func AppendValue(buf *arena.Buffer, v Value) {
	switch v.Tag {
	case SimpleString:
		buf.Append([]byte{'+'})
		buf.Append([]byte(v.Str))
		buf.Append(crlf)
	case Error:
		buf.Append([]byte{'-'})
		buf.Append([]byte(v.Str))
		buf.Append(crlf)
	case Integer:
		var scratch [20]byte
		buf.Append([]byte{':'})
		buf.Append(strconv.AppendInt(scratch[:0], v.Int, 10))
		buf.Append(crlf)
	case BulkString:
		if v.IsNullBulk() {
			buf.Append([]byte("$-1\r\n"))
			return
		}
		var scratch [20]byte
		buf.Append([]byte{'$'})
		buf.Append(strconv.AppendInt(scratch[:0], int64(len(v.Bytes)), 10))
		buf.Append(crlf)
		buf.Append(v.Bytes)
		buf.Append(crlf)
	case Array:
		var scratch [20]byte
		buf.Append([]byte{'*'})
		buf.Append(strconv.AppendInt(scratch[:0], int64(len(v.Elems)), 10))
		buf.Append(crlf)
		for _, e := range v.Elems {
			AppendValue(buf, e)
		}
	}
}

func encodedSize(v Value) int {
	switch v.Tag {
	case SimpleString:
		return 1 + len(v.Str) + 2
	case Error:
		return 1 + len(v.Str) + 2
	case Integer:
		return 1 + digitCount(v.Int) + 2
	case BulkString:
		if v.IsNullBulk() {
			return len("$-1\r\n")
		}
		return 1 + digitCount(int64(len(v.Bytes))) + 2 + len(v.Bytes) + 2
	case Array:
		size := 1 + digitCount(int64(len(v.Elems))) + 2
		for _, e := range v.Elems {
			size += encodedSize(e)
		}
		return size
	default:
		return 0
	}
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Tag {
	case SimpleString:
		buf = append(buf, '+')
		buf = append(buf, v.Str...)
		return append(buf, '\r', '\n')
	case Error:
		buf = append(buf, '-')
		buf = append(buf, v.Str...)
		return append(buf, '\r', '\n')
	case Integer:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, v.Int, 10)
		return append(buf, '\r', '\n')
	case BulkString:
		if v.IsNullBulk() {
			return append(buf, '$', '-', '1', '\r', '\n')
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(v.Bytes)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, v.Bytes...)
		return append(buf, '\r', '\n')
	case Array:
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(v.Elems)), 10)
		buf = append(buf, '\r', '\n')
		for _, e := range v.Elems {
			buf = appendValue(buf, e)
		}
		return buf
	default:
		return buf
	}
}

// digitCount is a branchless-in-spirit ceil(log10(n+1)) approximation:
// it counts the decimal digits of n (plus a leading '-' for negatives),
// matching spec.md §4.2's digit-count contract used by the size
// pre-pass.
func digitCount(n int64) int {
	count := 1
	neg := false
	if n < 0 {
		neg = true
		n = -n
	}
	for n >= 10 {
		n /= 10
		count++
	}
	if neg {
		count++
	}
	return count
}
