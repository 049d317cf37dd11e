package store

import (
	"testing"
)

func TestSetAndGet(t *testing.T) {
	memStore := NewMemStore()

	if err := memStore.Set("artifact-1", "dist"); err != nil {
		t.Error(err, "could not set key")
	}
	if err := memStore.Set("artifact-1", "other"); err != ErrKeyExists {
		t.Error("did not return the key exists error")
	}

	val, err := memStore.Get("artifact-1")
	if err != nil {
		t.Error(err)
	}
	if val.(string) != "dist" {
		t.Errorf("retrieved value not the same, expected %s got %s", "dist", val.(string))
	}
}

func TestGetNonExistingKey(t *testing.T) {
	memStore := NewMemStore()

	if _, err := memStore.Get("missing"); err != ErrKeyDoesntExist {
		t.Error("did not return key doesn't exist error")
	}
}

func TestDelete(t *testing.T) {
	memStore := NewMemStore()

	if err := memStore.Set("artifact-2", "dist"); err != nil {
		t.Fatal(err)
	}
	if err := memStore.Delete("artifact-2"); err != nil {
		t.Error(err)
	}
	if _, err := memStore.Get("artifact-2"); err != ErrKeyDoesntExist {
		t.Error("delete did not remove the key")
	}
}

func TestUpdate(t *testing.T) {
	memStore := NewMemStore()

	if err := memStore.Set("artifact-3", "dist"); err != nil {
		t.Fatal(err)
	}
	if err := memStore.Update("artifact-3", "build"); err != nil {
		t.Error(err)
	}

	val, err := memStore.Get("artifact-3")
	if err != nil {
		t.Error(err)
	}
	if val.(string) != "build" {
		t.Errorf("expected %s, got %s", "build", val.(string))
	}

	if err := memStore.Update("missing", "x"); err != ErrKeyDoesntExist {
		t.Error("update of a missing key should fail")
	}
}

func TestIndependentStores(t *testing.T) {
	a := NewMemStore()
	b := NewMemStore()

	if err := a.Set("artifact-4", "dist"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get("artifact-4"); err != ErrKeyDoesntExist {
		t.Error("stores must not share state")
	}
}
