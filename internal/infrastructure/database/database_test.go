package database

import (
	"testing"

	"casino/internal/config"
	"casino/internal/model"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:open_test?mode=memory&cache=shared"})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range model.All() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T missing", m)
		}
	}
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		driver string
		name   string
	}{
		{"mysql", "mysql"},
		{"postgres", "postgres"},
		{"sqlite", "sqlite"},
	}
	for _, tt := range tests {
		d, err := dialectorFor(&config.DatabaseConfig{Driver: tt.driver, Host: "h", Port: 1, Name: "casino"})
		if err != nil {
			t.Fatalf("%s: %v", tt.driver, err)
		}
		if d.Name() != tt.name {
			t.Errorf("%s: dialector %s", tt.driver, d.Name())
		}
	}
	if _, err := dialectorFor(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("oracle accepted")
	}
}
