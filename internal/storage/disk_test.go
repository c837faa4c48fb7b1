package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestDiskStore_PutGet(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("requirements content")
	ref, err := store.Put(ctx, "abc123.pdf", data)
	if err != nil {
		t.Fatal(err)
	}
	if ref == "" {
		t.Fatal("empty storage ref")
	}

	got, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestDiskStore_GetMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "missing.pdf"); err == nil {
		t.Error("expected error for missing blob")
	}
}

func TestDiskStore_PutOverwrites(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "k.txt", []byte("first")); err != nil {
		t.Fatal(err)
	}
	ref, err := store.Put(ctx, "k.txt", []byte("second"))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, ref)
	if string(got) != "second" {
		t.Errorf("got %q, want second", got)
	}
}
