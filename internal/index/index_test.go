package index

import (
	"fmt"
	"reflect"
	"testing"
)

func TestAddDocumentAndLookup(t *testing.T) {
	ix := New()
	err := ix.AddDocument("doc-1", [][]string{
		{"alpha", "beta", "gamma"},
		{"beta", "delta"},
	})
	if err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	postings := ix.Postings("beta")
	want := []Posting{
		{DocID: "doc-1", SentenceIndex: 0},
		{DocID: "doc-1", SentenceIndex: 1},
	}
	if !reflect.DeepEqual(postings, want) {
		t.Errorf("Postings(beta) = %v, want %v", postings, want)
	}
	if got := ix.Postings("missing"); got != nil {
		t.Errorf("Postings(missing) = %v, want nil", got)
	}
	if got := ix.TokenCount(); got != 4 {
		t.Errorf("TokenCount = %d, want 4", got)
	}
}

func TestDuplicateTokenInSentenceYieldsOnePosting(t *testing.T) {
	ix := New()
	if err := ix.AddDocument("doc-1", [][]string{{"echo", "echo", "echo"}}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	postings := ix.Postings("echo")
	if len(postings) != 1 {
		t.Fatalf("got %d postings, want 1", len(postings))
	}
	if ix.PostingCount() != 1 {
		t.Errorf("PostingCount = %d, want 1", ix.PostingCount())
	}
}

func TestBalanceInvariantUnderSortedInsertions(t *testing.T) {
	ix := New()
	// Ascending token order is the degenerate case for an unbalanced BST.
	sentence := make([]string, 0, 512)
	for i := 0; i < 512; i++ {
		sentence = append(sentence, fmt.Sprintf("token-%04d", i))
	}
	if err := ix.AddDocument("doc-1", [][]string{sentence}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if err := ix.Validate(); err != nil {
		t.Fatalf("Validate failed after sorted insertions: %v", err)
	}
	if got := ix.TokenCount(); got != 512 {
		t.Errorf("TokenCount = %d, want 512", got)
	}
}

func TestRemoveDocumentRestoresPriorState(t *testing.T) {
	ix := New()
	base := [][]string{
		{"alpha", "beta", "gamma"},
		{"delta", "epsilon", "zeta"},
	}
	if err := ix.AddDocument("doc-1", base); err != nil {
		t.Fatalf("AddDocument(doc-1) failed: %v", err)
	}
	before := ix.Snapshot()
	beforeTokens, beforePostings := ix.TokenCount(), ix.PostingCount()

	extra := [][]string{
		{"alpha", "eta", "theta"},
		{"beta", "iota"},
	}
	if err := ix.AddDocument("doc-2", extra); err != nil {
		t.Fatalf("AddDocument(doc-2) failed: %v", err)
	}
	ix.RemoveDocument("doc-2", extra)

	if err := ix.Validate(); err != nil {
		t.Fatalf("Validate failed after removal: %v", err)
	}
	after := ix.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("snapshot changed after add+remove:\nbefore: %v\nafter:  %v", before, after)
	}
	if ix.TokenCount() != beforeTokens {
		t.Errorf("TokenCount = %d, want %d", ix.TokenCount(), beforeTokens)
	}
	if ix.PostingCount() != beforePostings {
		t.Errorf("PostingCount = %d, want %d", ix.PostingCount(), beforePostings)
	}
}

func TestRemoveDeletesEmptiedNodes(t *testing.T) {
	ix := New()
	sentences := [][]string{{"solo", "shared"}}
	if err := ix.AddDocument("doc-1", sentences); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if err := ix.AddDocument("doc-2", [][]string{{"shared"}}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	ix.RemoveDocument("doc-1", sentences)
	if got := ix.Postings("solo"); got != nil {
		t.Errorf("Postings(solo) = %v, want nil after last posting removed", got)
	}
	if got := ix.Postings("shared"); len(got) != 1 || got[0].DocID != "doc-2" {
		t.Errorf("Postings(shared) = %v, want only doc-2", got)
	}
	if got := ix.TokenCount(); got != 1 {
		t.Errorf("TokenCount = %d, want 1", got)
	}
	if err := ix.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestAddDocumentRollsBackOnError(t *testing.T) {
	ix := New()
	err := ix.AddDocument("doc-1", [][]string{
		{"alpha", "beta"},
		{"gamma", ""},
	})
	if err == nil {
		t.Fatal("expected error for empty token")
	}
	for _, token := range []string{"alpha", "beta", "gamma"} {
		if got := ix.Postings(token); got != nil {
			t.Errorf("Postings(%s) = %v, want nil after rollback", token, got)
		}
	}
	if ix.TokenCount() != 0 || ix.PostingCount() != 0 {
		t.Errorf("counts after rollback: tokens=%d postings=%d, want 0/0", ix.TokenCount(), ix.PostingCount())
	}
}

func TestRebuildFromIsDeterministic(t *testing.T) {
	ix := New()
	for d := 0; d < 5; d++ {
		sentences := make([][]string, 0, 4)
		for s := 0; s < 4; s++ {
			sentences = append(sentences, []string{
				fmt.Sprintf("word-%d", (d*7+s*3)%20),
				fmt.Sprintf("word-%d", (d*11+s)%20),
				fmt.Sprintf("term-%d", d),
			})
		}
		if err := ix.AddDocument(fmt.Sprintf("doc-%d", d), sentences); err != nil {
			t.Fatalf("AddDocument failed: %v", err)
		}
	}
	entries := ix.Snapshot()

	first, second := New(), New()
	if err := first.RebuildFrom(entries); err != nil {
		t.Fatalf("first RebuildFrom failed: %v", err)
	}
	if err := second.RebuildFrom(entries); err != nil {
		t.Fatalf("second RebuildFrom failed: %v", err)
	}
	if !reflect.DeepEqual(first.Snapshot(), second.Snapshot()) {
		t.Error("rebuilt snapshots differ between runs")
	}
	if !reflect.DeepEqual(first.Snapshot(), entries) {
		t.Error("rebuilt snapshot differs from the original")
	}
	if first.TokenCount() != ix.TokenCount() {
		t.Errorf("rebuilt TokenCount = %d, want %d", first.TokenCount(), ix.TokenCount())
	}
}

func TestRebuildFromRejectsCorruptEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []TokenEntry
	}{
		{"empty token", []TokenEntry{{Token: "", Postings: []Posting{{DocID: "d", SentenceIndex: 0}}}}},
		{"no postings", []TokenEntry{{Token: "alpha", Postings: nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New().RebuildFrom(tt.entries); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestPostingsForSkipsDuplicatesAndMisses(t *testing.T) {
	ix := New()
	if err := ix.AddDocument("doc-1", [][]string{{"alpha", "beta"}}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	result := ix.PostingsFor([]string{"alpha", "alpha", "missing", "beta"})
	if len(result) != 2 {
		t.Errorf("got %d tokens, want 2: %v", len(result), result)
	}
	if _, ok := result["missing"]; ok {
		t.Error("missing token should not appear in result")
	}
}
