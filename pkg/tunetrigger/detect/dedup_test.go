package detect

import (
	"testing"
	"time"
)

func TestDedupCooldown(t *testing.T) {
	d := newDedup(30*time.Second, 10)
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if !d.Accept("1", t0) {
		t.Fatal("first sighting suppressed")
	}
	if d.Accept("1", t0.Add(10*time.Second)) {
		t.Error("repeat within cooldown accepted")
	}
	if d.Accept("1", t0.Add(29*time.Second)) {
		t.Error("suppressed repeat extended nothing but was accepted")
	}
	if !d.Accept("1", t0.Add(30*time.Second)) {
		t.Error("repeat after cooldown suppressed")
	}
	if d.Accept("1", t0.Add(45*time.Second)) {
		t.Error("cooldown did not restart on re-acceptance")
	}
}

func TestDedupIndependentIDs(t *testing.T) {
	d := newDedup(time.Minute, 10)
	now := time.Now()

	if !d.Accept("a", now) || !d.Accept("b", now) {
		t.Fatal("distinct ids should both be accepted")
	}
	if d.Accept("a", now.Add(time.Second)) || d.Accept("b", now.Add(time.Second)) {
		t.Error("ids not suppressed independently")
	}
}

func TestDedupCapDropsOldest(t *testing.T) {
	d := newDedup(time.Hour, 3)
	now := time.Now()

	for _, id := range []string{"a", "b", "c", "d"} {
		if !d.Accept(id, now) {
			t.Fatalf("Accept(%q) = false", id)
		}
	}
	if d.Len() != 3 {
		t.Errorf("Len() = %d, want 3", d.Len())
	}
	if !d.Accept("a", now) {
		t.Error("oldest id should have been forgotten")
	}
	if d.Accept("d", now) {
		t.Error("recent id should still be suppressed")
	}
}

func TestDedupAllowedDoesNotRecord(t *testing.T) {
	d := newDedup(time.Minute, 10)
	now := time.Now()

	if !d.Allowed("a", now) || !d.Allowed("a", now) {
		t.Fatal("unseen id not allowed")
	}
	if d.Len() != 0 {
		t.Errorf("Len() = %d after Allowed, want 0", d.Len())
	}
	d.Accept("a", now)
	if d.Allowed("a", now.Add(time.Second)) {
		t.Error("id allowed within cooldown")
	}
	if !d.Allowed("a", now.Add(time.Minute)) {
		t.Error("id not allowed after cooldown")
	}
}
