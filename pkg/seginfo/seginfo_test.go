package seginfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateNameAndParseRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 0xDEADBEEF, ^uint64(0)} {
		name := GenerateName(id)
		if len(name) != NameWidth {
			t.Fatalf("GenerateName(%d) = %q, want length %d", id, name, NameWidth)
		}
		got, err := ParseSegmentID(name)
		if err != nil {
			t.Fatalf("ParseSegmentID(%q): %v", name, err)
		}
		if got != id {
			t.Fatalf("ParseSegmentID(%q) = %d, want %d", name, got, id)
		}
	}
}

func TestParseSegmentIDRejectsBadInput(t *testing.T) {
	cases := []string{"", "short", "TOOLONGTOOLONGTOOLONG", "NOTHEXNOTHEXNOTHE"}
	for _, c := range cases {
		if _, err := ParseSegmentID(c); err == nil {
			t.Fatalf("ParseSegmentID(%q) expected error, got nil", c)
		}
	}
}

func TestListAndLatestSegmentIDs(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []uint64{3, 1, 2} {
		if err := os.WriteFile(filepath.Join(dir, GenerateName(id)), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-conforming file must be ignored.
	os.WriteFile(filepath.Join(dir, "not-a-segment"), nil, 0644)

	ids, err := ListSegmentIDs(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("ListSegmentIDs = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ListSegmentIDs = %v, want %v", ids, want)
		}
	}

	latest, ok, err := LatestSegmentID(dir)
	if err != nil || !ok || latest != 3 {
		t.Fatalf("LatestSegmentID = (%d, %v, %v), want (3, true, nil)", latest, ok, err)
	}
}

func TestLatestSegmentIDEmptyDir(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := LatestSegmentID(dir)
	if err != nil || ok {
		t.Fatalf("expected no segments, got ok=%v err=%v", ok, err)
	}
}

func TestRemoveSegmentsBelow(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []uint64{1, 2, 3, 4} {
		os.WriteFile(filepath.Join(dir, GenerateName(id)), nil, 0644)
	}
	if err := RemoveSegmentsBelow(dir, 3); err != nil {
		t.Fatal(err)
	}
	ids, err := ListSegmentIDs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Fatalf("RemoveSegmentsBelow left %v, want [3 4]", ids)
	}
}
