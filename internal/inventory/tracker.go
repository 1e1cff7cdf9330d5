package inventory

import (
	"log/slog"
	"sync"
)

// Tracker applies marker updates to an inventory and persists it after each
// one. It is safe for concurrent use; updates are serialized.
type Tracker struct {
	mu     sync.Mutex
	path   string
	inv    *Inventory
	logger *slog.Logger
}

// NewTracker creates a Tracker saving inv to path.
func NewTracker(path string, inv *Inventory, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{path: path, inv: inv, logger: logger.With("inventory", path)}
}

// MarkUploaded sets the Uploaded marker on an archive and saves the inventory.
func (t *Tracker) MarkUploaded(archiveID string) error {
	return t.mark(archiveID, "uploaded", func(a *Archive) { a.Uploaded = ptr(true) })
}

// MarkDownloaded sets the Downloaded marker on an archive and saves the inventory.
func (t *Tracker) MarkDownloaded(archiveID string) error {
	return t.mark(archiveID, "downloaded", func(a *Archive) { a.Downloaded = ptr(true) })
}

func (t *Tracker) mark(archiveID, marker string, set func(*Archive)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, err := t.inv.Find(archiveID)
	if err != nil {
		return err
	}
	set(a)
	if err := t.inv.Save(t.path); err != nil {
		return err
	}
	t.logger.Info("archive marked", "archive_id", archiveID, "marker", marker)
	return nil
}

// Status returns the current inventory status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inv.Status()
}

func ptr[T any](v T) *T { return &v }
