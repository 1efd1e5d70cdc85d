package httpx

import (
	"context"
	"fmt"
	"testing"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"503", statusErr(503), true},
		{"409", statusErr(409), false},
		{"wrapped 429", fmt.Errorf("call: %w", statusErr(429)), true},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestJoinURL(t *testing.T) {
	if got := JoinURL("http://a:1/", "/record_token"); got != "http://a:1/record_token" {
		t.Fatalf("want=http://a:1/record_token got=%q", got)
	}
	if got := StatusOf(fmt.Errorf("x: %w", statusErr(502))); got != 502 {
		t.Fatalf("StatusOf: want=502 got=%d", got)
	}
}
