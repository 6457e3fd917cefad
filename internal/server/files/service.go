// Package files manages open documents: it derives stable file IDs, keeps the
// in-memory patch history of every open file, and moves content between the
// history and the durable document store.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/docengine"
	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/storage"
)

// serverSite attributes patches the server synthesizes when loading flat text.
const serverSite = 0

type Service struct {
	store     storage.DocumentStore
	histories *HistoryStore
	logger    logging.Logger
}

func NewService(store storage.DocumentStore, histories *HistoryStore, logger logging.Logger) *Service {
	return &Service{
		store:     store,
		histories: histories,
		logger:    logger.With("module", "files"),
	}
}

// FileID derives the stable identifier sessions and patches address a
// document by. The separator keeps (owner, filename) pairs unambiguous.
func FileID(owner, filename string) string {
	sum := sha256.Sum224([]byte(owner + "/#/" + filename))
	return hex.EncodeToString(sum[:])
}

// Histories exposes the underlying history store.
func (s *Service) Histories() *HistoryStore {
	return s.histories
}

// Load returns the file's ID and patch history, reading the document from the
// store on first open. Loaded content becomes a synthesized history of
// per-rune inserts so that replaying it reproduces the stored text.
func (s *Service) Load(ctx context.Context, owner, filename string) (string, []string, error) {
	fileID := FileID(owner, filename)

	if history, ok := s.histories.Snapshot(fileID); ok {
		return fileID, history, nil
	}

	content, err := s.store.Read(ctx, owner, filename)
	if err != nil {
		return "", nil, fmt.Errorf("loading %s/%s: %w", owner, filename, err)
	}

	doc := docengine.New(serverSite)
	history := make([]string, 0, len(content))
	for i, r := range []rune(content) {
		history = append(history, doc.Insert(i, r))
	}

	if !s.histories.PutIfAbsent(fileID, history) {
		// lost the race against a concurrent first open
		history, _ = s.histories.Snapshot(fileID)
	}
	s.logger.Debug(ctx, "file loaded", "owner", owner, "filename", filename, "patches", len(history))
	return fileID, history, nil
}

// Append records a patch against the file's history and reports whether the
// file was resident.
func (s *Service) Append(fileID, patch string) bool {
	return s.histories.Append(fileID, patch)
}

// Save flattens the file's history into text and writes it to the store.
// Saving a file with no resident history fails; only an open file can hold
// edits worth persisting.
func (s *Service) Save(ctx context.Context, owner, filename string) error {
	fileID := FileID(owner, filename)
	history, ok := s.histories.Snapshot(fileID)
	if !ok {
		return fmt.Errorf("saving %s/%s: %w", owner, filename, common.ErrorNotFound)
	}

	doc := docengine.New(serverSite)
	if err := doc.Replay(history); err != nil {
		return fmt.Errorf("replaying %s/%s: %w", owner, filename, err)
	}
	if err := s.store.Write(ctx, owner, filename, doc.Text()); err != nil {
		return fmt.Errorf("saving %s/%s: %w", owner, filename, err)
	}
	s.logger.Info(ctx, "file saved", "owner", owner, "filename", filename, "bytes", len(doc.Text()))
	return nil
}
