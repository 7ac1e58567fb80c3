package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKey(dup) {
		t.Fatalf("1062 should be a duplicate key")
	}
	if !isDuplicateKey(fmt.Errorf("insert hint: %w", dup)) {
		t.Fatalf("wrapped 1062 should be a duplicate key")
	}
	if isDuplicateKey(&mysql.MySQLError{Number: 1452}) {
		t.Fatalf("foreign key failure is not a duplicate key")
	}
	if isDuplicateKey(errors.New("1062")) {
		t.Fatalf("plain errors must not match by text")
	}
}

func TestDateHelpers(t *testing.T) {
	d := time.Date(2024, 2, 29, 22, 0, 0, 0, time.UTC)
	if got := sqlDate(d); got != "2024-02-29" {
		t.Fatalf("sqlDate = %q", got)
	}
	if nullDate(nil) != nil {
		t.Fatalf("nullDate(nil) should be nil")
	}
	if got := nullDate(&d); got != "2024-02-29" {
		t.Fatalf("nullDate = %v", got)
	}
	if timePtr(sql.NullTime{}) != nil {
		t.Fatalf("invalid NullTime should map to nil")
	}
	if p := timePtr(sql.NullTime{Time: d, Valid: true}); p == nil || !p.Equal(d) {
		t.Fatalf("timePtr = %v", p)
	}
}
