package resp

import (
	"unsafe"

	"github.com/jalsol/jaldis/internal/arena"
)

// Outcome is the result of one Feed call.
type Outcome uint8

const (
	// OutcomeValue means a complete Value was parsed; Result.Value is
	// populated and Result.Consumed covers exactly that value's bytes.
	OutcomeValue Outcome = iota
	// OutcomeNeedMore means the chunk was absorbed into internal
	// buffers and the decoder retains state; Result.Consumed equals
	// the full input length.
	OutcomeNeedMore
	// OutcomeCancelled means the decoder hit a protocol error and is
	// left in an unspecified state; the caller must Reset before
	// feeding again.
	OutcomeCancelled
)

// Result is returned by every Feed call.
type Result struct {
	Consumed int
	Outcome  Outcome
	Value    Value
}

const (
	// MaxBulkLen bounds a single BulkString payload. A declared length
	// beyond this is treated as cancellation rather than an attempt to
	// allocate unbounded memory for one protocol frame (spec.md §4.1:
	// "length > input bound ⇒ cancelled").
	MaxBulkLen = 512 * 1024 * 1024
	// MaxArrayLen bounds the element count of a single Array.
	MaxArrayLen = 1 << 20
)

const (
	typeSimpleString = '+'
	typeError        = '-'
	typeInteger      = ':'
	typeBulkString   = '$'
	typeArray        = '*'
	cr               = '\r'
	lf               = '\n'
)

// kind identifies which sub-parser, if any, a Decoder currently has
// active. It plays the role of the original implementation's
// std::variant<TypeDispatcher, IntParser, ...> over parser states.
type kind uint8

const (
	kindNone kind = iota
	kindSimpleString
	kindError
	kindInteger
	kindBulkString
	kindArray
)

type bulkState uint8

const (
	bulkReadingLength bulkState = iota
	bulkReadingData
	bulkReadingTerminator
)

type arrayState uint8

const (
	arrayReadingLength arrayState = iota
	arrayReadingElements
)

// Decoder is a resumable RESP parser rooted in a single Arena. It
// corresponds to RespHandler in the original implementation: Feed
// consumes a byte chunk and returns either a complete value, a
// need-more signal, or cancellation. Reset returns it to the initial
// "expect a type byte" state without deallocating anything (the arena
// owns all storage).
type Decoder struct {
	a    *arena.Arena
	kind kind

	// line holds the accumulated bytes for SimpleString/Error lines,
	// and is also reused as the scratch buffer for Integer and the
	// length fields of BulkString/Array.
	line        *arena.Buffer
	pendingCR   bool

	// bulk string state
	bulkState     bulkState
	bulkExpected  int
	bulkData      *arena.Buffer

	// array state
	arrayState   arrayState
	arrayExpected int
	arrayElems    []Value
	elemDecoder   *Decoder
}

// NewDecoder creates a Decoder whose intermediate buffers draw from a.
func NewDecoder(a *arena.Arena) *Decoder {
	return &Decoder{a: a, kind: kindNone}
}

// Reset returns the decoder to the initial "expect a type byte" state.
// It is idempotent and never deallocates.
func (d *Decoder) Reset() {
	d.kind = kindNone
	d.pendingCR = false
	d.bulkState = bulkReadingLength
	d.bulkExpected = -1
	d.arrayState = arrayReadingLength
	d.arrayExpected = -1
	d.arrayElems = nil
	// line/bulkData buffers are reallocated lazily on first use of the
	// next value, so stale content can never leak across values.
	d.line = nil
	d.bulkData = nil
	if d.elemDecoder != nil {
		d.elemDecoder.Reset()
	}
}

// Idle reports whether the decoder has no partial value buffered,
// i.e. it is safe to release the arena backing it (spec.md §4.6).
func (d *Decoder) Idle() bool {
	return d.kind == kindNone
}

// Feed consumes input and returns the parse result. See resp.Decoder
// docs and spec.md §4.1 for the exact framing contract.
func (d *Decoder) Feed(input []byte) Result {
	if d.kind == kindNone {
		if len(input) == 0 {
			return Result{Consumed: 0, Outcome: OutcomeNeedMore}
		}

		switch input[0] {
		case typeSimpleString:
			d.kind = kindSimpleString
			d.line = arena.NewBuffer(d.a)
		case typeError:
			d.kind = kindError
			d.line = arena.NewBuffer(d.a)
		case typeInteger:
			d.kind = kindInteger
			d.line = arena.NewBuffer(d.a)
		case typeBulkString:
			d.kind = kindBulkString
			d.line = arena.NewBuffer(d.a)
			d.bulkState = bulkReadingLength
			d.bulkExpected = -1
		case typeArray:
			d.kind = kindArray
			d.line = arena.NewBuffer(d.a)
			d.arrayState = arrayReadingLength
			d.arrayExpected = -1
			d.arrayElems = nil
		default:
			return Result{Consumed: 0, Outcome: OutcomeCancelled}
		}

		rest := d.feedActive(input[1:])
		rest.Consumed++
		return rest
	}

	return d.feedActive(input)
}

func (d *Decoder) feedActive(input []byte) Result {
	switch d.kind {
	case kindSimpleString:
		return d.feedLine(input, SimpleString)
	case kindError:
		return d.feedLine(input, Error)
	case kindInteger:
		return d.feedInteger(input)
	case kindBulkString:
		return d.feedBulkString(input)
	case kindArray:
		return d.feedArray(input)
	default:
		return Result{Outcome: OutcomeCancelled}
	}
}

// scanLine advances a CRLF-terminated line scan, appending literal
// bytes to buf and handling a terminator split across Feed calls (a
// lone trailing CR is remembered, not treated as a terminator: spec.md
// §4.1 framing rules). It returns how many input bytes were consumed
// and whether the line is complete.
func scanLine(buf *arena.Buffer, pendingCR *bool, input []byte) (consumed int, done bool) {
	i := 0
	if *pendingCR {
		if len(input) == 0 {
			return 0, false
		}
		*pendingCR = false
		if input[0] == lf {
			return 1, true
		}
		buf.Append([]byte{cr})
		// fall through: reprocess input[0:] below, including input[0]
	}

	for i < len(input) {
		c := input[i]
		if c == cr {
			if i+1 < len(input) {
				if input[i+1] == lf {
					return i + 2, true
				}
				buf.Append(input[i : i+1])
				i++
				continue
			}
			*pendingCR = true
			i++
			return i, false
		}
		buf.Append(input[i : i+1])
		i++
	}
	return i, false
}

// arenaString views an arena-backed byte slice as a string without
// copying. Safe here because every caller hands it the finalized
// contents of a Buffer that the decoder never appends to again (a
// fresh Buffer is allocated before the next value starts), so the
// returned string's backing bytes stay immutable for as long as the
// owning Arena is alive.
func arenaString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func (d *Decoder) feedLine(input []byte, tag Type) Result {
	consumed, done := scanLine(d.line, &d.pendingCR, input)
	if !done {
		return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
	}
	return Result{
		Consumed: consumed,
		Outcome:  OutcomeValue,
		Value:    Value{Tag: tag, Str: arenaString(d.line.Bytes())},
	}
}

// parseBaseTenInt accepts base-10 ASCII optionally prefixed with '-',
// matching spec.md §4.1's framing rule and the original std::from_chars
// based parser (which, unlike strconv.ParseInt, never accepts a
// leading '+').
func parseBaseTenInt(s []byte) (int64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	i := 0
	neg := false
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, false
	}
	var n int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

func (d *Decoder) feedInteger(input []byte) Result {
	consumed, done := scanLine(d.line, &d.pendingCR, input)
	if !done {
		return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
	}
	n, ok := parseBaseTenInt(d.line.Bytes())
	if !ok {
		return Result{Consumed: consumed, Outcome: OutcomeCancelled}
	}
	return Result{Consumed: consumed, Outcome: OutcomeValue, Value: NewInteger(n)}
}

func (d *Decoder) feedBulkString(input []byte) Result {
	consumed := 0

	if d.bulkState == bulkReadingLength {
		n, done := scanLine(d.line, &d.pendingCR, input)
		consumed += n
		input = input[n:]
		if !done {
			return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
		}

		length, ok := parseBaseTenInt(d.line.Bytes())
		if !ok || length < 0 || length > MaxBulkLen {
			return Result{Consumed: consumed, Outcome: OutcomeCancelled}
		}
		d.bulkExpected = int(length)
		d.bulkData = arena.NewBuffer(d.a)
		d.bulkState = bulkReadingData
	}

	if d.bulkState == bulkReadingData {
		remaining := d.bulkExpected - d.bulkData.Len()
		toRead := remaining
		if toRead > len(input) {
			toRead = len(input)
		}
		d.bulkData.Append(input[:toRead])
		consumed += toRead
		input = input[toRead:]

		if d.bulkData.Len() < d.bulkExpected {
			return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
		}
		d.bulkState = bulkReadingTerminator
	}

	// bulkReadingTerminator
	if len(input) < 2 {
		return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
	}
	if input[0] != cr || input[1] != lf {
		return Result{Consumed: consumed, Outcome: OutcomeCancelled}
	}

	// d.bulkData.Bytes() is the arena-backed payload itself: the buffer
	// is never appended to again once the terminator is consumed, so
	// handing the slice out directly (instead of a heap copy) keeps the
	// whole value arena-owned per the keyspace/handler boundary
	// contract (command.heapCopy is what promotes a slice like this one
	// out of the arena when a handler needs to retain it).
	return Result{
		Consumed: consumed + 2,
		Outcome:  OutcomeValue,
		Value:    Value{Tag: BulkString, Bytes: d.bulkData.Bytes()},
	}
}

func (d *Decoder) feedArray(input []byte) Result {
	consumed := 0

	if d.arrayState == arrayReadingLength {
		n, done := scanLine(d.line, &d.pendingCR, input)
		consumed += n
		input = input[n:]
		if !done {
			return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
		}

		count, ok := parseBaseTenInt(d.line.Bytes())
		if !ok || count < 0 || count > MaxArrayLen {
			return Result{Consumed: consumed, Outcome: OutcomeCancelled}
		}
		d.arrayExpected = int(count)
		if count == 0 {
			return Result{Consumed: consumed, Outcome: OutcomeValue, Value: NewArray(nil)}
		}
		d.arrayElems = make([]Value, 0, count)
		d.arrayState = arrayReadingElements
		if d.elemDecoder == nil {
			d.elemDecoder = NewDecoder(d.a)
		}
	}

	for len(d.arrayElems) < d.arrayExpected {
		if len(input) == 0 {
			return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
		}

		result := d.elemDecoder.Feed(input)
		switch result.Outcome {
		case OutcomeCancelled:
			return Result{Consumed: consumed + result.Consumed, Outcome: OutcomeCancelled}
		case OutcomeNeedMore:
			consumed += result.Consumed
			return Result{Consumed: consumed, Outcome: OutcomeNeedMore}
		case OutcomeValue:
			d.arrayElems = append(d.arrayElems, result.Value)
			consumed += result.Consumed
			input = input[result.Consumed:]
			d.elemDecoder.Reset()
		}
	}

	return Result{Consumed: consumed, Outcome: OutcomeValue, Value: NewArray(d.arrayElems)}
}
