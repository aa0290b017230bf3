package keyspace

import (
	"errors"
	"testing"
	"time"
)

func TestFindOrCreateThenFindString(t *testing.T) {
	ks := New()
	v, err := FindOrCreate[StringVal](ks, []byte("greeting"))
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	v.Data = []byte("hello")

	got, err := Find[StringVal](ks, []byte("greeting"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if string(got.Data) != "hello" {
		t.Fatalf("Data = %q, want %q", got.Data, "hello")
	}
}

func TestFindMissingKeyReturnsNotFound(t *testing.T) {
	ks := New()
	_, err := Find[StringVal](ks, []byte("nope"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTypeDisciplineWrongType(t *testing.T) {
	ks := New()
	if _, err := FindOrCreate[StringVal](ks, []byte("k")); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if _, err := Find[ListVal](ks, []byte("k")); !errors.Is(err, ErrWrongType) {
		t.Fatalf("Find[ListVal] err = %v, want ErrWrongType", err)
	}
	if _, err := FindOrCreate[SetVal](ks, []byte("k")); !errors.Is(err, ErrWrongType) {
		t.Fatalf("FindOrCreate[SetVal] err = %v, want ErrWrongType", err)
	}
}

func TestListValDequeOperations(t *testing.T) {
	ks := New()
	v, err := FindOrCreate[ListVal](ks, []byte("l"))
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	v.D.PushBack([]byte("b"))
	v.D.PushFront([]byte("a"))
	v.D.PushBack([]byte("c"))

	if v.D.Len() != 3 {
		t.Fatalf("Len = %d, want 3", v.D.Len())
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if string(v.D.At(i)) != w {
			t.Fatalf("At(%d) = %q, want %q", i, v.D.At(i), w)
		}
	}
}

func TestSetValMembership(t *testing.T) {
	ks := New()
	v, err := FindOrCreate[SetVal](ks, []byte("s"))
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	v.M["x"] = struct{}{}
	v.M["y"] = struct{}{}

	got, err := Find[SetVal](ks, []byte("s"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got.M) != 2 {
		t.Fatalf("len(M) = %d, want 2", len(got.M))
	}
	if _, ok := got.M["x"]; !ok {
		t.Fatalf("expected member x present")
	}
}

func TestExpirationThreeValueLaw(t *testing.T) {
	ks := New()
	if _, err := FindOrCreate[StringVal](ks, []byte("no-key")); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	if ttl := ks.GetTTL([]byte("missing")); ttl != -2 {
		t.Fatalf("GetTTL(missing) = %d, want -2", ttl)
	}
	if ttl := ks.GetTTL([]byte("no-key")); ttl != -1 {
		t.Fatalf("GetTTL(no deadline) = %d, want -1", ttl)
	}

	if !ks.SetExpiry([]byte("no-key"), 60) {
		t.Fatalf("SetExpiry returned false for existing key")
	}
	ttl := ks.GetTTL([]byte("no-key"))
	if ttl < 0 || ttl > 60 {
		t.Fatalf("GetTTL(with deadline) = %d, want in [0, 60]", ttl)
	}
}

func TestExpiredKeyIsInvisibleToFindAndExists(t *testing.T) {
	ks := New()
	if _, err := FindOrCreate[StringVal](ks, []byte("k")); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	ks.data["k"].hasExpiry = true
	ks.data["k"].deadline = time.Now().Add(-time.Second)

	if ks.Exists([]byte("k")) {
		t.Fatalf("Exists should be false for expired key")
	}
	if _, err := Find[StringVal](ks, []byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find err = %v, want ErrNotFound", err)
	}
	if _, ok := ks.data["k"]; ok {
		t.Fatalf("expired key should have been purged from data on lookup")
	}
}

func TestEraseIgnoresExpiration(t *testing.T) {
	ks := New()
	if _, err := FindOrCreate[StringVal](ks, []byte("k")); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	ks.data["k"].hasExpiry = true
	ks.data["k"].deadline = time.Now().Add(-time.Second)

	if !ks.Erase([]byte("k")) {
		t.Fatalf("Erase should report true for an expired-but-present key")
	}
	if ks.Erase([]byte("k")) {
		t.Fatalf("second Erase should report false")
	}
}

func TestKeysPurgesExpiredEntries(t *testing.T) {
	ks := New()
	FindOrCreate[StringVal](ks, []byte("live"))
	FindOrCreate[StringVal](ks, []byte("dead"))
	ks.data["dead"].hasExpiry = true
	ks.data["dead"].deadline = time.Now().Add(-time.Second)

	keys := ks.Keys()
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("Keys() = %v, want [live]", keys)
	}
	if _, ok := ks.data["dead"]; ok {
		t.Fatalf("expired key should have been purged by Keys()")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	ks := New()
	FindOrCreate[StringVal](ks, []byte("a"))
	FindOrCreate[StringVal](ks, []byte("b"))
	ks.Clear()
	if len(ks.Keys()) != 0 {
		t.Fatalf("expected empty keyspace after Clear")
	}
}

func TestSweepReapsExpiredEntriesWithinBudget(t *testing.T) {
	ks := New()
	for i := 0; i < 50; i++ {
		key := string(rune('a' + i%26))
		FindOrCreate[StringVal](ks, []byte(key+string(rune('0'+i/26))))
	}
	for k, e := range ks.data {
		e.hasExpiry = true
		e.deadline = time.Now().Add(-time.Second)
		ks.data[k] = e
	}

	total := len(ks.data)
	reaped := 0
	for i := 0; i < 20 && len(ks.data) > 0; i++ {
		reaped += ks.Sweep(8)
	}
	if reaped == 0 {
		t.Fatalf("expected Sweep to reap at least one expired entry across repeated passes")
	}
	if reaped > total {
		t.Fatalf("reaped %d, more than the %d entries that existed", reaped, total)
	}
}
