package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsTokens(t *testing.T) {
	out := sanitizeKVs([]interface{}{"token_id", "tok1", "system_id", "sys-1", "user_id", "u1", "dangling"})
	if len(out) != 7 {
		t.Fatalf("len: want=7 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("token_id: want=[REDACTED] got=%v", out[1])
	}
	if out[3] != "sys-1" {
		t.Fatalf("system_id: want=sys-1 got=%v", out[3])
	}
	s, _ := out[5].(string)
	if !strings.HasPrefix(s, "hash:") || strings.Contains(s, "u1") {
		t.Fatalf("user_id: want hashed got=%v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling: want=dangling got=%v", out[6])
	}
}

func TestSanitizeNestedMap(t *testing.T) {
	got := sanitizeValue("payload", map[string]interface{}{"admin_key": "x", "name": "n"})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("want map got=%T", got)
	}
	if m["admin_key"] != "[REDACTED]" || m["name"] != "n" {
		t.Fatalf("unexpected map: %v", m)
	}
}
