package files

import "sync"

// HistoryStore holds the in-memory patch history of every open document,
// keyed by file ID. Histories are append-only while resident; they leave
// memory only when the process exits.
type HistoryStore struct {
	mu        sync.RWMutex
	histories map[string][]string
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{histories: make(map[string][]string)}
}

// Resident reports whether the file has an in-memory history.
func (h *HistoryStore) Resident(fileID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.histories[fileID]
	return ok
}

// PutIfAbsent installs history for fileID unless one is already resident,
// and reports whether it installed. The loser of a concurrent load keeps the
// winner's history.
func (h *HistoryStore) PutIfAbsent(fileID string, history []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.histories[fileID]; ok {
		return false
	}
	h.histories[fileID] = history
	return true
}

// Append adds a patch to the file's history and reports whether the file was
// resident. Patches for non-resident files are dropped.
func (h *HistoryStore) Append(fileID, patch string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.histories[fileID]; !ok {
		return false
	}
	h.histories[fileID] = append(h.histories[fileID], patch)
	return true
}

// Snapshot returns a copy of the file's history in order.
func (h *HistoryStore) Snapshot(fileID string) ([]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	history, ok := h.histories[fileID]
	if !ok {
		return nil, false
	}
	out := make([]string, len(history))
	copy(out, history)
	return out, true
}
