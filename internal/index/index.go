// Package index implements the token inverted index as a self-balancing AVL
// tree. Each node holds one distinct token and its sorted postings list of
// (documentId, sentenceIndex) occurrences. A coarse RWMutex guards the tree:
// a whole document is added or removed under one exclusive lock, and
// multi-token lookups share one read lock, so a reader never observes a
// partially rotated tree.
package index

import (
	"fmt"
	"sort"
	"sync"
)

// Posting is a single (documentId, sentenceIndex) occurrence of a token.
type Posting struct {
	DocID         string `json:"documentId"`
	SentenceIndex int    `json:"sentenceIndex"`
}

// TokenEntry is one token with its full postings list, the unit of the
// snapshot format.
type TokenEntry struct {
	Token    string    `json:"token"`
	Postings []Posting `json:"postings"`
}

// Index is the shared inverted index over the whole corpus.
type Index struct {
	mu           sync.RWMutex
	root         *node
	tokenCount   int
	postingCount int
	size         int64
}

func New() *Index {
	return &Index{}
}

// AddDocument inserts one posting per distinct token per sentence under a
// single exclusive lock. If any insert fails, postings already inserted for
// the document are removed before returning, so the document is either fully
// indexed or not indexed at all.
func (ix *Index) AddDocument(docID string, sentences [][]string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	inserted := make([]TokenEntry, 0, len(sentences))
	for sentenceIdx, tokens := range sentences {
		p := Posting{DocID: docID, SentenceIndex: sentenceIdx}
		for _, token := range tokens {
			if token == "" {
				ix.rollback(inserted)
				return fmt.Errorf("empty token in document %s sentence %d", docID, sentenceIdx)
			}
			var m mutation
			ix.root = insert(ix.root, token, p, &m)
			if m.postingChanged {
				inserted = append(inserted, TokenEntry{Token: token, Postings: []Posting{p}})
				ix.postingCount++
				ix.size += int64(len(token) + len(docID) + 24)
			}
			if m.nodeCreated {
				ix.tokenCount++
				ix.size += 64
			}
		}
	}
	return nil
}

// RemoveDocument prunes every posting the document contributed, deleting any
// node whose postings list becomes empty, under one exclusive lock.
func (ix *Index) RemoveDocument(docID string, sentences [][]string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for sentenceIdx, tokens := range sentences {
		p := Posting{DocID: docID, SentenceIndex: sentenceIdx}
		for _, token := range tokens {
			ix.removeLocked(token, p)
		}
	}
}

// Postings returns a copy of the postings list for token, or nil.
func (ix *Index) Postings(token string) []Posting {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.postingsLocked(token)
}

// PostingsFor looks up every distinct token under a single shared lock and
// returns the non-empty postings lists.
func (ix *Index) PostingsFor(tokens []string) map[string][]Posting {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	result := make(map[string][]Posting, len(tokens))
	for _, token := range tokens {
		if _, seen := result[token]; seen {
			continue
		}
		if postings := ix.postingsLocked(token); postings != nil {
			result[token] = postings
		}
	}
	return result
}

// Snapshot returns every token with its postings, sorted by token. Postings
// are copied, so the caller may serialise them without holding the lock.
func (ix *Index) Snapshot() []TokenEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entries := make([]TokenEntry, 0, ix.tokenCount)
	walk(ix.root, func(n *node) {
		postings := make([]Posting, len(n.postings))
		copy(postings, n.postings)
		entries = append(entries, TokenEntry{
			Token:    n.token,
			Postings: postings,
		})
	})
	return entries
}

// RebuildFrom reconstructs the tree from snapshot entries. Tokens are
// re-inserted in sorted order, so repeated save/load cycles produce
// structurally reproducible trees.
func (ix *Index) RebuildFrom(entries []TokenEntry) error {
	sorted := make([]TokenEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Token < sorted[j].Token
	})

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.root = nil
	ix.tokenCount = 0
	ix.postingCount = 0
	ix.size = 0
	for _, entry := range sorted {
		if entry.Token == "" {
			return fmt.Errorf("snapshot entry with empty token")
		}
		if len(entry.Postings) == 0 {
			return fmt.Errorf("snapshot entry for %q with no postings", entry.Token)
		}
		for _, p := range entry.Postings {
			var m mutation
			ix.root = insert(ix.root, entry.Token, p, &m)
			if m.postingChanged {
				ix.postingCount++
				ix.size += int64(len(entry.Token) + len(p.DocID) + 24)
			}
			if m.nodeCreated {
				ix.tokenCount++
				ix.size += 64
			}
		}
	}
	return ix.validateLocked()
}

// Validate walks the tree checking BST ordering, height bookkeeping, and the
// balance invariant (factor in {-1, 0, 1} at every node).
func (ix *Index) Validate() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.validateLocked()
}

// TokenCount returns the number of distinct tokens in the index.
func (ix *Index) TokenCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tokenCount
}

// PostingCount returns the total number of postings in the index.
func (ix *Index) PostingCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.postingCount
}

// Size returns an estimate of the index memory footprint in bytes.
func (ix *Index) Size() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Reset drops the whole tree.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.root = nil
	ix.tokenCount = 0
	ix.postingCount = 0
	ix.size = 0
}

func (ix *Index) postingsLocked(token string) []Posting {
	n := find(ix.root, token)
	if n == nil {
		return nil
	}
	postings := make([]Posting, len(n.postings))
	copy(postings, n.postings)
	return postings
}

func (ix *Index) removeLocked(token string, p Posting) {
	var m mutation
	ix.root = remove(ix.root, token, p, &m)
	if m.postingChanged {
		ix.postingCount--
		ix.size -= int64(len(token) + len(p.DocID) + 24)
	}
	if m.nodeDeleted {
		ix.tokenCount--
		ix.size -= 64
	}
	if ix.size < 0 {
		ix.size = 0
	}
}

// rollback removes the postings recorded during a failed AddDocument.
func (ix *Index) rollback(inserted []TokenEntry) {
	for i := len(inserted) - 1; i >= 0; i-- {
		ix.removeLocked(inserted[i].Token, inserted[i].Postings[0])
	}
}

func (ix *Index) validateLocked() error {
	count := 0
	var check func(n *node, min, max string) (int, error)
	check = func(n *node, min, max string) (int, error) {
		if n == nil {
			return 0, nil
		}
		if n.token == "" {
			return 0, fmt.Errorf("node with empty token")
		}
		if min != "" && n.token <= min {
			return 0, fmt.Errorf("ordering violated at %q (min %q)", n.token, min)
		}
		if max != "" && n.token >= max {
			return 0, fmt.Errorf("ordering violated at %q (max %q)", n.token, max)
		}
		if len(n.postings) == 0 {
			return 0, fmt.Errorf("node %q with empty postings list", n.token)
		}
		lh, err := check(n.left, min, n.token)
		if err != nil {
			return 0, err
		}
		rh, err := check(n.right, n.token, max)
		if err != nil {
			return 0, err
		}
		h := lh
		if rh > h {
			h = rh
		}
		h++
		if n.height != h {
			return 0, fmt.Errorf("height mismatch at %q: stored %d, actual %d", n.token, n.height, h)
		}
		if bf := lh - rh; bf < -1 || bf > 1 {
			return 0, fmt.Errorf("balance factor %d at %q", bf, n.token)
		}
		count++
		return h, nil
	}
	if _, err := check(ix.root, "", ""); err != nil {
		return err
	}
	if count != ix.tokenCount {
		return fmt.Errorf("token count mismatch: counted %d, tracked %d", count, ix.tokenCount)
	}
	return nil
}
