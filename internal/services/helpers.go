package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/alohomora/internal/platform/apierr"
)

// requireFields takes name/value pairs and rejects the first blank value.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return apierr.InvalidInput("%s must be a non-empty string", pairs[i])
		}
	}
	return nil
}

// normalizeJSON compacts raw; empty input and JSON null become nil.
func normalizeJSON(raw []byte) datatypes.JSON {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return datatypes.JSON(raw)
	}
	return datatypes.JSON(buf.Bytes())
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 (with or without a zone) and the space
// separated SQL form. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var (
	errTokenHashMismatch = errors.New("token hash does not match token id")
	errMissingWorkflow   = errors.New("referenced workflow is not present")
	errMissingFunction   = errors.New("referenced function is not present")
)
