package command

import (
	"errors"
	"fmt"

	"github.com/jalsol/jaldis/internal/arena"
	"github.com/jalsol/jaldis/internal/keyspace"
	"github.com/jalsol/jaldis/internal/resp"
)

func errWrongArgc(cmd string) resp.Value {
	return resp.NewError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", cmd))
}

func errNotBulk() resp.Value {
	return resp.NewError("ERR value is not a bulk string")
}

func errNotInt() resp.Value {
	return resp.NewError("ERR value is not an integer")
}

func errWrongType() resp.Value {
	return resp.NewError("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func nilBulk() resp.Value {
	return resp.NewBulkStringFromString(resp.NullBulk)
}

func ok() resp.Value {
	return resp.NewSimpleString("OK")
}

// asBulk extracts the raw payload of a BulkString argument.
func asBulk(v resp.Value) ([]byte, bool) {
	if v.Tag != resp.BulkString {
		return nil, false
	}
	return v.Bytes, true
}

// parseArgInt accepts base-10 ASCII optionally prefixed with '-', same
// restriction as the wire-level integer fields (no leading '+').
func parseArgInt(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	i := 0
	neg := false
	if b[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(b) {
		return 0, false
	}
	n := 0
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

func heapCopy(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

func handlePing(args []resp.Value, _ *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) > 1 {
		return errWrongArgc("PING")
	}
	if len(args) == 1 {
		msg, isBulk := asBulk(args[0])
		if !isBulk {
			return errNotBulk()
		}
		return resp.NewBulkString(a.Append(msg))
	}
	return resp.NewSimpleString("PONG")
}

func handleGet(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) != 1 {
		return errWrongArgc("GET")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}

	v, err := keyspace.Find[keyspace.StringVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrNotFound):
		return nilBulk()
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	}
	return resp.NewBulkString(a.Append(v.Data))
}

func handleSet(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 2 {
		return errWrongArgc("SET")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	val, isBulk := asBulk(args[1])
	if !isBulk {
		return errNotBulk()
	}

	// SET always wins, even against an existing key of a different
	// type: erase unconditionally before (re)creating the String.
	ks.Erase(key)
	v, _ := keyspace.FindOrCreate[keyspace.StringVal](ks, key)
	v.Data = heapCopy(val)
	return ok()
}

func handleDel(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) < 1 {
		return errWrongArgc("DEL")
	}
	deleted := 0
	for _, arg := range args {
		key, isBulk := asBulk(arg)
		if !isBulk {
			return errNotBulk()
		}
		if ks.Erase(key) {
			deleted++
		}
	}
	return resp.NewInteger(int64(deleted))
}

func handleKeys(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) != 0 {
		return errWrongArgc("KEYS")
	}
	keys := ks.Keys()
	elems := make([]resp.Value, len(keys))
	for i, k := range keys {
		elems[i] = resp.NewBulkString(a.AppendString(k))
	}
	return resp.NewArray(elems)
}

func handleFlushdb(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 0 {
		return errWrongArgc("FLUSHDB")
	}
	ks.Clear()
	return ok()
}

func handleLpush(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) < 2 {
		return errWrongArgc("LPUSH")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}

	v, err := keyspace.FindOrCreate[keyspace.ListVal](ks, key)
	if errors.Is(err, keyspace.ErrWrongType) {
		return errWrongType()
	}
	for _, arg := range args[1:] {
		val, isBulk := asBulk(arg)
		if !isBulk {
			return errNotBulk()
		}
		v.D.PushFront(heapCopy(val))
	}
	return resp.NewInteger(int64(v.D.Len()))
}

func handleRpush(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) < 2 {
		return errWrongArgc("RPUSH")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}

	v, err := keyspace.FindOrCreate[keyspace.ListVal](ks, key)
	if errors.Is(err, keyspace.ErrWrongType) {
		return errWrongType()
	}
	for _, arg := range args[1:] {
		val, isBulk := asBulk(arg)
		if !isBulk {
			return errNotBulk()
		}
		v.D.PushBack(heapCopy(val))
	}
	return resp.NewInteger(int64(v.D.Len()))
}

func popCount(args []resp.Value, cmd string) (count int, explicit bool, errVal *resp.Value) {
	if len(args) == 1 {
		return 1, false, nil
	}
	cnt, isBulk := asBulk(args[1])
	if !isBulk {
		v := errNotBulk()
		return 0, true, &v
	}
	n, ok := parseArgInt(cnt)
	if !ok || n < 0 {
		v := errNotInt()
		return 0, true, &v
	}
	return n, true, nil
}

func handleLpop(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) == 0 || len(args) > 2 {
		return errWrongArgc("LPOP")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	count, explicit, errVal := popCount(args, "LPOP")
	if errVal != nil {
		return *errVal
	}

	v, err := keyspace.Find[keyspace.ListVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return nilBulk()
	}

	if !explicit {
		if v.D.Len() == 0 {
			return nilBulk()
		}
		val, _ := v.D.PopFront()
		return resp.NewBulkString(a.Append(val))
	}

	popped := make([]resp.Value, 0, count)
	for i := 0; i < count && v.D.Len() > 0; i++ {
		val, _ := v.D.PopFront()
		popped = append(popped, resp.NewBulkString(a.Append(val)))
	}
	return resp.NewArray(popped)
}

func handleRpop(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) == 0 || len(args) > 2 {
		return errWrongArgc("RPOP")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	count, explicit, errVal := popCount(args, "RPOP")
	if errVal != nil {
		return *errVal
	}

	v, err := keyspace.Find[keyspace.ListVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return nilBulk()
	}

	if !explicit {
		if v.D.Len() == 0 {
			return nilBulk()
		}
		val, _ := v.D.PopBack()
		return resp.NewBulkString(a.Append(val))
	}

	popped := make([]resp.Value, 0, count)
	for i := 0; i < count && v.D.Len() > 0; i++ {
		val, _ := v.D.PopBack()
		popped = append(popped, resp.NewBulkString(a.Append(val)))
	}
	return resp.NewArray(popped)
}

func handleLlen(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 1 {
		return errWrongArgc("LLEN")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	v, err := keyspace.Find[keyspace.ListVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewInteger(0)
	}
	return resp.NewInteger(int64(v.D.Len()))
}

func handleLrange(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) != 3 {
		return errWrongArgc("LRANGE")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	startBytes, isBulk := asBulk(args[1])
	if !isBulk {
		return errNotBulk()
	}
	stopBytes, isBulk := asBulk(args[2])
	if !isBulk {
		return errNotBulk()
	}
	startArg, ok := parseArgInt(startBytes)
	if !ok {
		return errNotInt()
	}
	stopArg, ok := parseArgInt(stopBytes)
	if !ok {
		return errNotInt()
	}

	v, err := keyspace.Find[keyspace.ListVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewArray(nil)
	}

	length := v.D.Len()
	start := startArg
	if start < 0 {
		start = length + start
		if start < 0 {
			start = 0
		}
	}
	stop := stopArg
	if stop < 0 {
		stop = length + stop
	}
	if stop > length-1 {
		stop = length - 1
	}

	if start > stop || length == 0 {
		return resp.NewArray(nil)
	}

	elems := make([]resp.Value, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		elems = append(elems, resp.NewBulkString(a.Append(v.D.At(i))))
	}
	return resp.NewArray(elems)
}

func handleSadd(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) < 2 {
		return errWrongArgc("SADD")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}

	v, err := keyspace.FindOrCreate[keyspace.SetVal](ks, key)
	if errors.Is(err, keyspace.ErrWrongType) {
		return errWrongType()
	}
	added := 0
	for _, arg := range args[1:] {
		member, isBulk := asBulk(arg)
		if !isBulk {
			return errNotBulk()
		}
		if _, exists := v.M[string(member)]; !exists {
			v.M[string(member)] = struct{}{}
			added++
		}
	}
	return resp.NewInteger(int64(added))
}

func handleSrem(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) < 2 {
		return errWrongArgc("SREM")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}

	v, err := keyspace.Find[keyspace.SetVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewInteger(0)
	}
	removed := 0
	for _, arg := range args[1:] {
		member, isBulk := asBulk(arg)
		if !isBulk {
			return errNotBulk()
		}
		if _, exists := v.M[string(member)]; exists {
			delete(v.M, string(member))
			removed++
		}
	}
	return resp.NewInteger(int64(removed))
}

func handleScard(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 1 {
		return errWrongArgc("SCARD")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	v, err := keyspace.Find[keyspace.SetVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewInteger(0)
	}
	return resp.NewInteger(int64(len(v.M)))
}

func handleSmembers(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) != 1 {
		return errWrongArgc("SMEMBERS")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	v, err := keyspace.Find[keyspace.SetVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewArray(nil)
	}
	elems := make([]resp.Value, 0, len(v.M))
	for m := range v.M {
		elems = append(elems, resp.NewBulkString(a.AppendString(m)))
	}
	return resp.NewArray(elems)
}

func handleSinter(args []resp.Value, ks *keyspace.Keyspace, a *arena.Arena) resp.Value {
	if len(args) < 1 {
		return errWrongArgc("SINTER")
	}
	firstKey, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	first, err := keyspace.Find[keyspace.SetVal](ks, firstKey)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewArray(nil)
	}

	others := make([]*keyspace.SetVal, 0, len(args)-1)
	for _, arg := range args[1:] {
		k, isBulk := asBulk(arg)
		if !isBulk {
			return errNotBulk()
		}
		other, err := keyspace.Find[keyspace.SetVal](ks, k)
		switch {
		case errors.Is(err, keyspace.ErrWrongType):
			return errWrongType()
		case errors.Is(err, keyspace.ErrNotFound):
			return resp.NewArray(nil)
		}
		others = append(others, other)
	}

	var result []resp.Value
	for member := range first.M {
		inAll := true
		for _, other := range others {
			if _, ok := other.M[member]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			result = append(result, resp.NewBulkString(a.AppendString(member)))
		}
	}
	return resp.NewArray(result)
}

func handleSismember(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 2 {
		return errWrongArgc("SISMEMBER")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	member, isBulk := asBulk(args[1])
	if !isBulk {
		return errNotBulk()
	}
	v, err := keyspace.Find[keyspace.SetVal](ks, key)
	switch {
	case errors.Is(err, keyspace.ErrWrongType):
		return errWrongType()
	case errors.Is(err, keyspace.ErrNotFound):
		return resp.NewInteger(0)
	}
	if _, ok := v.M[string(member)]; ok {
		return resp.NewInteger(1)
	}
	return resp.NewInteger(0)
}

func handleExpire(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 2 {
		return errWrongArgc("EXPIRE")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	secsBytes, isBulk := asBulk(args[1])
	if !isBulk {
		return errNotBulk()
	}
	secs, isInt := parseArgInt(secsBytes)
	if !isInt || secs < 0 {
		return errNotInt()
	}
	if ks.SetExpiry(key, int64(secs)) {
		return resp.NewInteger(1)
	}
	return resp.NewInteger(0)
}

func handleTtl(args []resp.Value, ks *keyspace.Keyspace, _ *arena.Arena) resp.Value {
	if len(args) != 1 {
		return errWrongArgc("TTL")
	}
	key, isBulk := asBulk(args[0])
	if !isBulk {
		return errNotBulk()
	}
	return resp.NewInteger(ks.GetTTL(key))
}
