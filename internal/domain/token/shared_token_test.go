package token

import "testing"

func TestHashKnownVector(t *testing.T) {
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Hash("abc"); got != want {
		t.Fatalf("hash: want=%s got=%s", want, got)
	}
}
