package httpapi

import (
	"sync"
	"testing"
	"time"
)

func TestSessionRegistryAddDone(t *testing.T) {
	sr := NewSessionRegistry()

	if !sr.Add() {
		t.Fatal("Add should succeed when not draining")
	}
	if sr.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", sr.ActiveCount())
	}

	sr.Done()
	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount after Done = %d, want 0", sr.ActiveCount())
	}
}

func TestSessionRegistryDraining(t *testing.T) {
	sr := NewSessionRegistry()

	if sr.IsDraining() {
		t.Error("new registry should not be draining")
	}

	sr.StartDraining()

	if !sr.IsDraining() {
		t.Error("registry should be draining after StartDraining")
	}
	if sr.Add() {
		t.Error("Add should fail while draining")
	}
}

func TestSessionRegistryWaitBlocksUntilDone(t *testing.T) {
	sr := NewSessionRegistry()

	if !sr.Add() {
		t.Fatal("Add failed")
	}
	sr.StartDraining()

	waited := make(chan struct{})
	go func() {
		sr.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned before Done was called")
	case <-time.After(50 * time.Millisecond):
	}

	sr.Done()

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Done")
	}
}

func TestSessionRegistryConcurrentAdd(t *testing.T) {
	sr := NewSessionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sr.Add() {
				sr.Done()
			}
		}()
	}
	wg.Wait()

	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0 after all sessions finished", sr.ActiveCount())
	}
}

func TestConvoRegistryReturnsSameStorePerUser(t *testing.T) {
	cr := newConvoRegistry()

	a := cr.get("user-a")
	b := cr.get("user-b")
	if a == b {
		t.Error("different users should get different stores")
	}

	again := cr.get("user-a")
	if a != again {
		t.Error("same user should get the same store across calls")
	}
}
