package snapshot

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/duplicheck/duplicheck/internal/index"

	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

func testState() *State {
	return &State{
		Documents: []DocumentRecord{
			{
				ID: "doc-1",
				Sentences: []SentenceRecord{
					{Raw: "Tôi yêu em", Tokens: []string{"tôi", "yêu", "em"}},
					{Raw: "Second sentence here", Tokens: []string{"second", "sentence", "here"}},
				},
			},
		},
		Tokens: []index.TokenEntry{
			{Token: "em", Postings: []index.Posting{{DocID: "doc-1", SentenceIndex: 0}}},
			{Token: "here", Postings: []index.Posting{{DocID: "doc-1", SentenceIndex: 1}}},
			{Token: "second", Postings: []index.Posting{{DocID: "doc-1", SentenceIndex: 1}}},
			{Token: "sentence", Postings: []index.Posting{{DocID: "doc-1", SentenceIndex: 1}}},
			{Token: "tôi", Postings: []index.Posting{{DocID: "doc-1", SentenceIndex: 0}}},
			{Token: "yêu", Postings: []index.Posting{{DocID: "doc-1", SentenceIndex: 0}}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	want := testState()
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	state, err := store.Load(context.Background())
	if err != nil {
		t.Errorf("Load of missing file returned error: %v", err)
	}
	if state != nil {
		t.Errorf("Load of missing file returned state: %+v", state)
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save(context.Background(), testState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"flipped payload byte", func(b []byte) []byte {
			b[len(b)/2] ^= 0xff
			return b
		}},
		{"truncated", func(b []byte) []byte {
			return b[:len(b)/2]
		}},
		{"bad magic", func(b []byte) []byte {
			b[0] = 'X'
			return b
		}},
		{"empty file", func(b []byte) []byte {
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupted := tt.mutate(append([]byte(nil), raw...))
			if err := os.WriteFile(store.Path(), corrupted, 0o644); err != nil {
				t.Fatalf("writing corrupted snapshot: %v", err)
			}
			_, err := store.Load(context.Background())
			if !errors.Is(err, apperrors.ErrIndexCorruption) {
				t.Errorf("error = %v, want ErrIndexCorruption", err)
			}
		})
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save(context.Background(), testState()); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	second := testState()
	second.Documents[0].ID = "doc-2"
	second.Tokens = second.Tokens[:3]
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Documents[0].ID != "doc-2" || len(got.Tokens) != 3 {
		t.Errorf("latest save not visible: %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("found %d files in snapshot dir, want 1 (no leftover temp files)", len(entries))
	}
}
