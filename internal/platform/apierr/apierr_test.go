package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUnavailableHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := Unavailable(cause)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("status: want=%d got=%d", http.StatusInternalServerError, err.Status)
	}
	if err.Error() != "service temporarily unavailable" {
		t.Fatalf("message leaked: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
}

func TestIsWrapped(t *testing.T) {
	err := fmt.Errorf("record: %w", Conflict("token already recorded"))
	if !Is(err, CodeConflict) {
		t.Fatalf("want conflict")
	}
	if Is(err, CodeNotFound) {
		t.Fatalf("did not want not_found")
	}
	ae, ok := As(err)
	if !ok || ae.Status != http.StatusConflict {
		t.Fatalf("As: want 409 got=%v ok=%v", ae, ok)
	}
}
