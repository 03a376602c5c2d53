// Package snapshot persists the full engine state as a single binary file:
// a magic/version header, two length-prefixed JSON blocks (documents, then
// tokens), and a CRC32 footer over everything before it. Writes go to a
// temp file in the same directory and are renamed into place, so a crash
// mid-save leaves the previous snapshot intact.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/duplicheck/duplicheck/internal/index"
	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

const (
	magic         = "DCSNAP"
	formatVersion = uint16(1)

	// maxBlockBytes bounds a single JSON block on load, guarding against a
	// corrupted length prefix allocating unbounded memory.
	maxBlockBytes = 1 << 30
)

// SentenceRecord is one sentence of a persisted document.
type SentenceRecord struct {
	Raw    string   `json:"raw"`
	Tokens []string `json:"tokens"`
}

// DocumentRecord is one persisted document with its tokenized sentences.
type DocumentRecord struct {
	ID        string           `json:"documentId"`
	Sentences []SentenceRecord `json:"sentences"`
}

// State is the complete persisted engine state. The token block alone is
// sufficient to rebuild the index; the document block carries the raw
// sentence text needed for match excerpts and re-indexing.
type State struct {
	Documents []DocumentRecord   `json:"documents"`
	Tokens    []index.TokenEntry `json:"tokens"`
}

// FileStore reads and writes snapshots under a directory.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates the snapshot directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &FileStore{
		path:   filepath.Join(dir, "detector.snapshot"),
		logger: slog.Default().With("component", "snapshot"),
	}, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save serialises state and atomically replaces the snapshot file.
func (s *FileStore) Save(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docs, err := json.Marshal(state.Documents)
	if err != nil {
		return fmt.Errorf("encoding documents block: %w", err)
	}
	tokens, err := json.Marshal(state.Tokens)
	if err != nil {
		return fmt.Errorf("encoding tokens block: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.BigEndian, formatVersion)
	writeBlock(&buf, docs)
	writeBlock(&buf, tokens)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(buf.Bytes()))

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".detector.snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	s.logger.Debug("snapshot written",
		"path", s.path,
		"bytes", buf.Len(),
		"documents", len(state.Documents),
		"tokens", len(state.Tokens),
	)
	return nil
}

// Load reads and verifies the snapshot file. A missing file returns
// (nil, nil); any structural or checksum failure returns an index
// corruption error so the caller can fall back to re-indexing.
func (s *FileStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	footer := len(raw) - 4
	if footer < len(magic)+2 {
		return nil, apperrors.New(apperrors.ErrIndexCorruption, "snapshot truncated")
	}
	if string(raw[:len(magic)]) != magic {
		return nil, apperrors.New(apperrors.ErrIndexCorruption, "bad snapshot magic")
	}
	if stored, computed := binary.BigEndian.Uint32(raw[footer:]), crc32.ChecksumIEEE(raw[:footer]); stored != computed {
		return nil, apperrors.Newf(apperrors.ErrIndexCorruption,
			"snapshot checksum mismatch: stored %08x, computed %08x", stored, computed)
	}

	r := bytes.NewReader(raw[len(magic):footer])
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, apperrors.New(apperrors.ErrIndexCorruption, "snapshot header truncated")
	}
	if version != formatVersion {
		return nil, apperrors.Newf(apperrors.ErrIndexCorruption, "unsupported snapshot version %d", version)
	}

	docs, err := readBlock(r)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorruption, "documents block: %v", err)
	}
	tokens, err := readBlock(r)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorruption, "tokens block: %v", err)
	}

	state := &State{}
	if err := json.Unmarshal(docs, &state.Documents); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorruption, "decoding documents block: %v", err)
	}
	if err := json.Unmarshal(tokens, &state.Tokens); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorruption, "decoding tokens block: %v", err)
	}
	s.logger.Debug("snapshot loaded",
		"path", s.path,
		"documents", len(state.Documents),
		"tokens", len(state.Tokens),
	)
	return state, nil
}

func writeBlock(buf *bytes.Buffer, block []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(block)))
	buf.Write(block)
}

func readBlock(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("block length truncated")
	}
	if int64(n) > maxBlockBytes || int64(n) > int64(r.Len()) {
		return nil, fmt.Errorf("block length %d exceeds remaining data", n)
	}
	block := make([]byte, n)
	if _, err := r.Read(block); err != nil {
		return nil, fmt.Errorf("block truncated")
	}
	return block, nil
}
