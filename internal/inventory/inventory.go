// Package inventory reads and updates an archive inventory file: the JSON
// listing of a vault's archives, annotated with the local file each archive
// was downloaded to and whether it has been uploaded since.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when no archive has the requested id.
	ErrNotFound = errors.New("inventory: archive not found")
	// ErrIncomplete is returned when a retrieved file is missing or truncated.
	ErrIncomplete = errors.New("inventory: retrieved file is incomplete")
)

// Archive is one entry of the inventory. Downloaded and Uploaded are markers:
// only their presence matters, so they are pointers and omitted when unset.
type Archive struct {
	ArchiveID          string `json:"ArchiveId"`
	ArchiveDescription string `json:"ArchiveDescription,omitempty"`
	CreationDate       string `json:"CreationDate,omitempty"`
	Size               int64  `json:"Size,omitempty"`
	SHA256TreeHash     string `json:"SHA256TreeHash,omitempty"`

	JobID      string `json:"JobId,omitempty"`
	Filename   string `json:"Filename,omitempty"`
	Downloaded *bool  `json:"Downloaded,omitempty"`
	Uploaded   *bool  `json:"Uploaded,omitempty"`
}

// IsDownloaded reports whether the archive carries the Downloaded marker.
func (a *Archive) IsDownloaded() bool { return a.Downloaded != nil }

// IsUploaded reports whether the archive carries the Uploaded marker.
func (a *Archive) IsUploaded() bool { return a.Uploaded != nil }

// Key is the object key the archive is uploaded under: the base name of its
// local file.
func (a *Archive) Key() string {
	name := a.Filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// CheckLocal verifies that the archive's retrieved file exists and, when the
// inventory records a size, that the file has that size.
func (a *Archive) CheckLocal() error {
	if a.Filename == "" {
		return fmt.Errorf("%w: archive %s has no file name", ErrIncomplete, a.ArchiveID)
	}
	info, err := os.Stat(a.Filename)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrIncomplete, a.Filename)
	}
	if a.Size > 0 && info.Size() != a.Size {
		return fmt.Errorf("%w: %s has %d of %d bytes", ErrIncomplete, a.Filename, info.Size(), a.Size)
	}
	return nil
}

// Inventory is the whole inventory document.
type Inventory struct {
	VaultARN      string    `json:"VaultARN,omitempty"`
	InventoryDate string    `json:"InventoryDate,omitempty"`
	ArchiveList   []Archive `json:"ArchiveList"`
}

// Load reads an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", path, err)
	}
	return &inv, nil
}

// Save writes the inventory to path, replacing the file atomically.
func (inv *Inventory) Save(path string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	return nil
}

// Find returns the archive with the given id.
func (inv *Inventory) Find(id string) (*Archive, error) {
	for i := range inv.ArchiveList {
		if inv.ArchiveList[i].ArchiveID == id {
			return &inv.ArchiveList[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// EligibleForUpload returns up to count archives that have been downloaded to
// a local file and not uploaded yet, in inventory order. A count of zero or
// less means no limit.
func (inv *Inventory) EligibleForUpload(count int) []Archive {
	return inv.filter(count, func(a *Archive) bool {
		return a.Filename != "" && a.IsDownloaded() && !a.IsUploaded()
	})
}

// EligibleForDownload returns up to count archives that have a retrieval job
// and a target file but are not downloaded yet.
func (inv *Inventory) EligibleForDownload(count int) []Archive {
	return inv.filter(count, func(a *Archive) bool {
		return a.JobID != "" && a.Filename != "" && !a.IsDownloaded()
	})
}

func (inv *Inventory) filter(count int, keep func(*Archive) bool) []Archive {
	var out []Archive
	for i := range inv.ArchiveList {
		if count > 0 && len(out) == count {
			break
		}
		if keep(&inv.ArchiveList[i]) {
			out = append(out, inv.ArchiveList[i])
		}
	}
	return out
}

// Status counts archives by transfer stage.
type Status struct {
	Total      int `json:"total" yaml:"total"`
	Initiated  int `json:"initiated" yaml:"initiated"`
	Downloaded int `json:"downloaded" yaml:"downloaded"`
	Uploaded   int `json:"uploaded" yaml:"uploaded"`
	Pending    int `json:"pending_upload" yaml:"pending_upload"`
	Retrieving int `json:"pending_download" yaml:"pending_download"`
}

// Status summarizes the inventory.
func (inv *Inventory) Status() Status {
	s := Status{Total: len(inv.ArchiveList)}
	for i := range inv.ArchiveList {
		a := &inv.ArchiveList[i]
		if a.JobID != "" {
			s.Initiated++
		}
		if a.IsDownloaded() {
			s.Downloaded++
		}
		if a.IsUploaded() {
			s.Uploaded++
		}
	}
	s.Pending = len(inv.EligibleForUpload(0))
	s.Retrieving = len(inv.EligibleForDownload(0))
	return s
}
