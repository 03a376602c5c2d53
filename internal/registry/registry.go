// Package registry is the authoritative per-document record of sentences and
// their token multisets. The inverted index only ever holds postings derived
// from these entries, and removal and rebuild are driven from here.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/duplicheck/duplicheck/internal/tokenizer"
	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

// DocumentEntry is one ingested document. Entries are immutable except via
// full replace-on-update; there are no partial sentence edits.
type DocumentEntry struct {
	ID        string
	Sentences []tokenizer.Sentence
	AddedAt   time.Time
}

// TokenSets returns the per-sentence token slices, in sentence order.
func (d *DocumentEntry) TokenSets() [][]string {
	sets := make([][]string, len(d.Sentences))
	for i, s := range d.Sentences {
		sets[i] = s.Tokens
	}
	return sets
}

// Registry stores document entries keyed by ID.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*DocumentEntry
}

func New() *Registry {
	return &Registry{
		docs: make(map[string]*DocumentEntry),
	}
}

// Add stores a new entry. Duplicate IDs are rejected.
func (r *Registry) Add(entry *DocumentEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[entry.ID]; exists {
		return apperrors.Newf(apperrors.ErrDocumentExists, "document %s", entry.ID)
	}
	r.docs[entry.ID] = entry
	return nil
}

// Remove deletes and returns the entry for id.
func (r *Registry) Remove(id string) (*DocumentEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, exists := r.docs[id]
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, "document %s", id)
	}
	delete(r.docs, id)
	return entry, nil
}

// Get returns the entry for id, or nil.
func (r *Registry) Get(id string) *DocumentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[id]
}

// Sentence returns one sentence of a document.
func (r *Registry) Sentence(id string, sentenceIdx int) (tokenizer.Sentence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, exists := r.docs[id]
	if !exists || sentenceIdx < 0 || sentenceIdx >= len(entry.Sentences) {
		return tokenizer.Sentence{}, false
	}
	return entry.Sentences[sentenceIdx], true
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// All returns every entry sorted by document ID.
func (r *Registry) All() []*DocumentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*DocumentEntry, 0, len(r.docs))
	for _, entry := range r.docs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]*DocumentEntry)
}
