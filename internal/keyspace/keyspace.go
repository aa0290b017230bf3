// Package keyspace implements the typed key-value store the server
// dispatches commands against: a transparently-hashed string keyspace
// whose values are one of String, List, or Set, each key carrying an
// optional expiration deadline.
package keyspace

import (
	"errors"
	"math/rand"
	"time"

	"github.com/spaolacci/murmur3"
)

// ErrWrongType is returned when a command addresses a key whose
// stored value is not the type the command expects.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrNotFound is returned by Find when the key does not exist (or has
// expired).
var ErrNotFound = errors.New("no such key")

// StringVal is the scalar byte-sequence value kind.
type StringVal struct {
	Data []byte
}

// ListVal is the double-ended-queue value kind backing LPUSH/RPUSH
// and friends.
type ListVal struct {
	D *Deque[[]byte]
}

// SetVal is the unordered, duplicate-free value kind backing
// SADD/SREM/SINTER and friends.
type SetVal struct {
	M map[string]struct{}
}

// value is the constraint satisfied by the three value kinds above;
// it mirrors the original implementation's Storage::Value variant.
type value interface {
	StringVal | ListVal | SetVal
}

type entry struct {
	val       any // *StringVal | *ListVal | *SetVal
	deadline  time.Time
	hasExpiry bool
}

func (e *entry) expired(now time.Time) bool {
	return e.hasExpiry && !now.Before(e.deadline)
}

// defaultBucketCount is the fixed number of probe buckets Sweep
// samples from. It plays the role of the original's
// data_.bucket_count() (the unordered_map's live bucket count), fixed
// here since Go's map gives no equivalent introspection.
const defaultBucketCount = 1024

// Keyspace is the server's single store of keyed values. It is not
// safe for concurrent use; the event loop that owns it is
// single-threaded by design (spec.md §6).
type Keyspace struct {
	data    map[string]*entry
	buckets [][]string
	rng     *rand.Rand
}

// New creates an empty Keyspace.
func New() *Keyspace {
	return &Keyspace{
		data:    make(map[string]*entry),
		buckets: make([][]string, defaultBucketCount),
		rng:     rand.New(rand.NewSource(1)),
	}
}

func bucketOf(key []byte) int {
	return int(murmur3.Sum32(key) % defaultBucketCount)
}

func (ks *Keyspace) addToBucket(key string) {
	id := bucketOf([]byte(key))
	ks.buckets[id] = append(ks.buckets[id], key)
}

func (ks *Keyspace) removeFromBucket(key string) {
	id := bucketOf([]byte(key))
	bucket := ks.buckets[id]
	for i, k := range bucket {
		if k == key {
			bucket[i] = bucket[len(bucket)-1]
			ks.buckets[id] = bucket[:len(bucket)-1]
			return
		}
	}
}

// findLive looks up key, purging and discarding it first if it has
// expired. The []byte key is a borrowed view into the caller's read
// buffer: the map-index expression below is recognized by the
// compiler as non-escaping, so this lookup allocates nothing (spec.md
// §4.3's "transparent hashing" requirement) even though keys stored in
// the map are always owned copies.
func (ks *Keyspace) findLive(key []byte, now time.Time) *entry {
	e, ok := ks.data[string(key)]
	if !ok {
		return nil
	}
	if e.expired(now) {
		ks.eraseKey(string(key))
		return nil
	}
	return e
}

func (ks *Keyspace) eraseKey(key string) {
	delete(ks.data, key)
	ks.removeFromBucket(key)
}

// Find looks up key and type-asserts its value to *T, where T is one
// of StringVal, ListVal, or SetVal. It returns ErrNotFound if the key
// is absent or expired, and ErrWrongType if it holds a different kind
// of value. This mirrors the original's Find<T> template.
func Find[T value](ks *Keyspace, key []byte) (*T, error) {
	e := ks.findLive(key, time.Now())
	if e == nil {
		return nil, ErrNotFound
	}
	v, ok := e.val.(*T)
	if !ok {
		return nil, ErrWrongType
	}
	return v, nil
}

// FindOrCreate looks up key, creating a zero-valued T (with its
// internal collections initialized) and inserting it with no
// expiration if absent. It returns ErrWrongType if an entry exists
// but holds a different kind of value. This mirrors the original's
// FindOrCreate<T> template.
func FindOrCreate[T value](ks *Keyspace, key []byte) (*T, error) {
	now := time.Now()
	e := ks.findLive(key, now)
	if e == nil {
		v := new(T)
		initZero(v)
		owned := string(key)
		ks.data[owned] = &entry{val: v}
		ks.addToBucket(owned)
		return v, nil
	}
	v, ok := e.val.(*T)
	if !ok {
		return nil, ErrWrongType
	}
	return v, nil
}

func initZero[T value](v *T) {
	switch p := any(v).(type) {
	case *StringVal:
		_ = p
	case *ListVal:
		p.D = NewDeque[[]byte]()
	case *SetVal:
		p.M = make(map[string]struct{})
	}
}

// Exists reports whether key has a live (non-expired) entry.
func (ks *Keyspace) Exists(key []byte) bool {
	return ks.findLive(key, time.Now()) != nil
}

// Erase removes key unconditionally and reports whether it had been
// present, irrespective of expiration (spec.md §4.3).
func (ks *Keyspace) Erase(key []byte) bool {
	k := string(key)
	if _, ok := ks.data[k]; !ok {
		return false
	}
	ks.eraseKey(k)
	return true
}

// Keys returns all live keys in unspecified order, purging any
// expired entries it encounters along the way.
func (ks *Keyspace) Keys() []string {
	now := time.Now()
	var expired []string
	keys := make([]string, 0, len(ks.data))
	for k, e := range ks.data {
		if e.expired(now) {
			expired = append(expired, k)
			continue
		}
		keys = append(keys, k)
	}
	for _, k := range expired {
		ks.eraseKey(k)
	}
	return keys
}

// Clear removes every entry.
func (ks *Keyspace) Clear() {
	ks.data = make(map[string]*entry)
	ks.buckets = make([][]string, defaultBucketCount)
}

// SetExpiry sets key to expire in seconds from now, returning false if
// key does not exist (or has already expired).
func (ks *Keyspace) SetExpiry(key []byte, seconds int64) bool {
	e := ks.findLive(key, time.Now())
	if e == nil {
		return false
	}
	e.hasExpiry = true
	e.deadline = time.Now().Add(time.Duration(seconds) * time.Second)
	return true
}

// GetTTL reports the remaining time to live for key in whole seconds:
// -2 if the key does not exist, -1 if it exists with no expiration,
// and the non-negative remaining seconds otherwise (spec.md §4.3's
// three-value law).
func (ks *Keyspace) GetTTL(key []byte) int64 {
	now := time.Now()
	e := ks.findLive(key, now)
	if e == nil {
		return -2
	}
	if !e.hasExpiry {
		return -1
	}
	remaining := e.deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	secs := int64(remaining / time.Second)
	if secs < 0 {
		secs = 0
	}
	return secs
}

// Sweep performs one amortized expiration pass: it probes up to
// maxChecks*2 pseudo-random buckets, inspecting entries within each
// until it has checked maxChecks live entries or exhausted its
// attempt budget, reaping any expired entry it finds. This bounds the
// per-call cost instead of walking the whole keyspace, and the
// doubled attempt budget absorbs probes that land on empty buckets
// (supplementing the original's rng_() % bucket_count sampling loop).
func (ks *Keyspace) Sweep(maxChecks int) int {
	if maxChecks <= 0 || len(ks.data) == 0 {
		return 0
	}
	now := time.Now()
	checked := 0
	reaped := 0
	maxAttempts := maxChecks * 2

	for attempt := 0; checked < maxChecks && attempt < maxAttempts; attempt++ {
		id := ks.rng.Intn(defaultBucketCount)
		bucket := ks.buckets[id]
		for _, key := range bucket {
			if checked >= maxChecks {
				break
			}
			e, ok := ks.data[key]
			if !ok {
				continue
			}
			checked++
			if e.expired(now) {
				ks.eraseKey(key)
				reaped++
				break // the bucket slice we were ranging over just mutated
			}
		}
	}
	return reaped
}
