package clock

import (
	"testing"
	"time"
)

func TestMock_SetAndAdvance(t *testing.T) {
	m := NewMock(1000)
	if got := m.NowMs(); got != 1000 {
		t.Fatalf("NowMs() = %d, want 1000", got)
	}

	m.Advance(250 * time.Millisecond)
	if got := m.NowMs(); got != 1250 {
		t.Fatalf("after Advance, NowMs() = %d, want 1250", got)
	}

	m.Set(9999)
	if got := m.NowMs(); got != 9999 {
		t.Fatalf("after Set, NowMs() = %d, want 9999", got)
	}
}

func TestReal_Monotonic(t *testing.T) {
	var r Real
	a := r.NowMs()
	time.Sleep(2 * time.Millisecond)
	b := r.NowMs()
	if b < a {
		t.Fatalf("Real clock went backwards: a=%d b=%d", a, b)
	}
}
