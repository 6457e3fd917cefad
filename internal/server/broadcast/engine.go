// Package broadcast fans patches out to every session editing a file.
package broadcast

import (
	"context"

	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/files"
	"github.com/usernamedt/multitext-server/internal/server/metrics"
	"github.com/usernamedt/multitext-server/internal/server/sessions"
)

// Engine records incoming patches into the file history and relays the raw
// envelope to every subscribed session, the sender included.
type Engine struct {
	histories *files.HistoryStore
	registry  *sessions.Registry
	recorder  metrics.Recorder
	logger    logging.Logger
}

func NewEngine(histories *files.HistoryStore, registry *sessions.Registry, recorder metrics.Recorder, logger logging.Logger) *Engine {
	return &Engine{
		histories: histories,
		registry:  registry,
		recorder:  recorder,
		logger:    logger.With("module", "broadcast"),
	}
}

// Submit appends the patch to the file's history and relays raw to every
// session bound to fileID. Patches for files that are not resident in memory
// are dropped: nothing to attach them to. Deliveries to sessions whose
// outbound queue is full are dropped without blocking the rest.
func (e *Engine) Submit(ctx context.Context, fileID, patch string, raw []byte) {
	if !e.histories.Append(fileID, patch) {
		e.logger.Warn(ctx, "patch for non-resident file dropped", "file_id", fileID)
		return
	}
	e.recorder.RecordPatch()

	delivered, dropped := 0, 0
	for _, conn := range e.registry.SessionsFor(fileID) {
		if conn.Send(raw) {
			delivered++
		} else {
			dropped++
		}
	}
	e.recorder.RecordBroadcast(delivered, dropped)
	if dropped > 0 {
		e.logger.Warn(ctx, "slow sessions missed a patch", "file_id", fileID, "dropped", dropped)
	}
	e.logger.Debug(ctx, "patch relayed", "file_id", fileID, "delivered", delivered)
}
