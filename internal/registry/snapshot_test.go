package registry

import "testing"

// I1: for every observed pair of snapshots on the same process, rev(s2) >= rev(s1).
func TestStore_CompareAndReplace_MonotonicRev(t *testing.T) {
	s := NewStore()

	if !s.CompareAndReplace(&Snapshot{Rev: 1}) {
		t.Fatal("expected rev 1 to install over rev 0")
	}
	if s.Current().Rev != 1 {
		t.Fatalf("Current().Rev = %d, want 1", s.Current().Rev)
	}

	// A stale/lower rev is a no-op.
	if s.CompareAndReplace(&Snapshot{Rev: 1}) {
		t.Error("expected rev(new) <= rev(current) to be a no-op")
	}
	if s.Current().Rev != 1 {
		t.Errorf("Current().Rev changed unexpectedly to %d", s.Current().Rev)
	}

	if !s.CompareAndReplace(&Snapshot{Rev: 2}) {
		t.Fatal("expected rev 2 to install over rev 1")
	}
}

func TestStore_Invalidate_MarksStaleWithoutChangingRev(t *testing.T) {
	s := NewStore()
	s.CompareAndReplace(&Snapshot{Rev: 5})

	s.Invalidate()

	cur := s.Current()
	if cur.Rev != 5 {
		t.Errorf("Invalidate changed rev to %d", cur.Rev)
	}
	if !cur.Stale {
		t.Error("expected Stale=true after Invalidate")
	}
}

func TestComputeChecksum_OrderIndependent(t *testing.T) {
	a := []ManifestEntry{{PluginID: "p2"}, {PluginID: "p1"}}
	b := []ManifestEntry{{PluginID: "p1"}, {PluginID: "p2"}}

	if ComputeChecksum(a) != ComputeChecksum(b) {
		t.Error("expected checksum to be independent of input order")
	}
}

func TestComputeChecksum_DiffersOnContentChange(t *testing.T) {
	a := []ManifestEntry{{PluginID: "p1", Source: "fs"}}
	b := []ManifestEntry{{PluginID: "p1", Source: "redis"}}

	if ComputeChecksum(a) == ComputeChecksum(b) {
		t.Error("expected different checksums for different content")
	}
}
