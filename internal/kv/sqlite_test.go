package kv

import (
	"context"
	"os"
	"strings"
	"testing"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "geocam-kv-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM kv`).Scan(&count); err != nil {
		t.Fatalf("kv table missing: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	v, ok, err := db.Get(context.Background(), "photos_v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != "" {
		t.Errorf("Get = (%q, %v), want absent", v, ok)
	}
}

func TestSetOverwrites(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Set(ctx, "k", "one"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Set(ctx, "k", "two"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := db.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
	if v != "two" {
		t.Errorf("value = %q, want two", v)
	}
}

func TestLargeValue(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	big := strings.Repeat("x", 1<<20)
	if err := db.Set(ctx, "big", big); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, _, _ := db.Get(ctx, "big")
	if len(v) != len(big) {
		t.Errorf("len = %d, want %d", len(v), len(big))
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Set(ctx, "gone", "v")
	if err := db.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.Get(ctx, "gone"); ok {
		t.Error("key still present after delete")
	}
	if err := db.Delete(ctx, "gone"); err != nil {
		t.Errorf("deleting absent key: %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	f, err := os.CreateTemp("", "geocam-kv-reopen-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	ctx := context.Background()
	db, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Set(ctx, "k", "durable")
	db.Close()

	db2, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	v, ok, _ := db2.Get(ctx, "k")
	if !ok || v != "durable" {
		t.Errorf("after reopen Get = (%q, %v)", v, ok)
	}
}
