package snapshot

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := SnapshotV1{
		Header: Header{RegionID: "r1", Tick: 42},
		Groups: []GroupV1{{
			RootID: "a",
			Parts: []PartV1{
				{ID: "a", LinkNum: 1, Pos: [3]float64{1, 2, 3}, Rot: [4]float64{0, 0, 0, 1}, Text: "hello"},
				{ID: "b", LinkNum: 2, Sound: make([]byte, 33), Animations: make([]byte, 40)},
			},
		}},
	}
	path := SnapshotPath(dir, 42)
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.Header.Tick != 42 || got.Header.RegionID != "r1" || got.Header.Groups != 1 {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
	if len(got.Groups) != 1 || len(got.Groups[0].Parts) != 2 {
		t.Fatalf("groups mismatch: %+v", got.Groups)
	}
	if got.Groups[0].Parts[0].Text != "hello" || len(got.Groups[0].Parts[1].Animations) != 40 {
		t.Fatalf("part fields lost: %+v", got.Groups[0].Parts)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Tick != 42 || h.Version != Version {
		t.Fatalf("ReadHeader=%+v", h)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if got := Latest(dir); got != "" {
		t.Fatalf("Latest on empty dir=%q", got)
	}
	for _, tick := range []uint64{5, 120, 9} {
		if err := WriteSnapshot(SnapshotPath(dir, tick), SnapshotV1{Header: Header{Tick: tick}}); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	if got, want := Latest(dir), SnapshotPath(dir, 120); got != want {
		t.Fatalf("Latest=%q want %q", got, want)
	}
}

func TestKeyNotFoundError(t *testing.T) {
	var err error = &KeyNotFoundError{Kind: "root part", Key: "x"}
	var knf *KeyNotFoundError
	if !errors.As(err, &knf) || knf.Key != "x" {
		t.Fatalf("errors.As failed for %v", err)
	}
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
