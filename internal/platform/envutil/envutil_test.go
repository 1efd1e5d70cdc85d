package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("X_DUR", "1500ms")
	if got := Duration("X_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("go syntax: want=1.5s got=%v", got)
	}
	t.Setenv("X_DUR", "3")
	if got := Duration("X_DUR", time.Second); got != 3*time.Second {
		t.Fatalf("seconds: want=3s got=%v", got)
	}
	t.Setenv("X_DUR", "soon")
	if got := Duration("X_DUR", time.Second); got != time.Second {
		t.Fatalf("fallback: want=1s got=%v", got)
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("X_INT", "42")
	t.Setenv("X_BOOL", "off")
	if got := Int("X_INT", 1); got != 42 {
		t.Fatalf("int: want=42 got=%d", got)
	}
	if got := Bool("X_BOOL", true); got {
		t.Fatalf("bool: want=false got=%v", got)
	}
	if got := Int("X_MISSING", 7); got != 7 {
		t.Fatalf("default: want=7 got=%d", got)
	}
}
