package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"pg 23505", &pgconn.PgError{Code: "23505"}, true},
		{"pg 23503", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite text", errors.New("UNIQUE constraint failed: shared_tokens.token_hash"), true},
		{"other", errors.New("disk I/O error"), false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN(""); got != "alohomora.db?_busy_timeout=5000" {
		t.Fatalf("default: got=%q", got)
	}
	if got := sqliteDSN("file:x?mode=memory"); got != "file:x?mode=memory&_busy_timeout=5000" {
		t.Fatalf("append: got=%q", got)
	}
}
