package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ygrebnov/taskrunner/internal/inventory"
	"github.com/ygrebnov/taskrunner/internal/multipart"
)

type uploadReport struct {
	File   string            `json:"file" yaml:"file"`
	Result *multipart.Result `json:"result" yaml:"result"`
}

func (r uploadReport) Headers() []string {
	return []string{"FILE", "KEY", "PARTS", "SIZE", "ETAG", "DURATION"}
}

func (r uploadReport) Rows() [][]string {
	return [][]string{{
		r.File,
		r.Result.Key,
		strconv.Itoa(len(r.Result.Parts)),
		humanSize(r.Result.Size),
		r.Result.ETag,
		r.Result.Duration.Round(time.Millisecond).String(),
	}}
}

type checksumReport struct {
	File string         `json:"file" yaml:"file"`
	Sum  *multipart.Sum `json:"checksum" yaml:"checksum"`
}

func (r checksumReport) Headers() []string { return []string{"PART", "SIZE", "ETAG"} }

func (r checksumReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Sum.Parts)+1)
	for _, p := range r.Sum.Parts {
		rows = append(rows, []string{strconv.Itoa(p.Number), humanSize(p.Size), p.ETag})
	}
	return append(rows, []string{"total", humanSize(r.Sum.Size), r.Sum.ETag})
}

type uploadState struct {
	multipart.Upload `yaml:",inline"`
	State            string `json:"state" yaml:"state"`
	Error            string `json:"error,omitempty" yaml:"error,omitempty"`
}

type uploadsReport struct {
	Uploads []uploadState `json:"uploads" yaml:"uploads"`
}

func (r uploadsReport) Headers() []string {
	return []string{"UPLOAD ID", "KEY", "PARTS", "INITIATED", "STATE"}
}

func (r uploadsReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Uploads))
	for _, u := range r.Uploads {
		state := u.State
		if u.Error != "" {
			state += ": " + u.Error
		}
		rows = append(rows, []string{u.ID, u.Key, strconv.Itoa(u.Parts), u.Initiated.Format(time.RFC3339), state})
	}
	return rows
}

type archiveResult struct {
	Index     int    `json:"index" yaml:"index"`
	ArchiveID string `json:"archive_id" yaml:"archive_id"`
	Key       string `json:"key" yaml:"key"`
	ETag      string `json:"etag,omitempty" yaml:"etag,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// inventoryReport lists the archives an inventory command acted on.
type inventoryReport struct {
	Action   string          `json:"action" yaml:"action"`
	Archives []archiveResult `json:"archives" yaml:"archives"`
	Failed   int             `json:"failed" yaml:"failed"`
}

func (r inventoryReport) Headers() []string {
	return []string{"#", "ARCHIVE", "KEY", "STATUS", "DETAIL"}
}

func (r inventoryReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Archives))
	for _, a := range r.Archives {
		status, detail := r.Action, a.ETag
		if a.Error != "" {
			status, detail = "failed", a.Error
		}
		rows = append(rows, []string{strconv.Itoa(a.Index), a.ArchiveID, a.Key, status, detail})
	}
	return rows
}

type statusReport struct {
	Inventory string           `json:"inventory" yaml:"inventory"`
	Status    inventory.Status `json:"status" yaml:"status"`
}

func (r statusReport) Headers() []string { return []string{"STAGE", "ARCHIVES"} }

func (r statusReport) Rows() [][]string {
	s := r.Status
	return [][]string{
		{"total", strconv.Itoa(s.Total)},
		{"retrieval initiated", strconv.Itoa(s.Initiated)},
		{"downloaded", strconv.Itoa(s.Downloaded)},
		{"uploaded", strconv.Itoa(s.Uploaded)},
		{"waiting for upload", strconv.Itoa(s.Pending)},
		{"waiting for download", strconv.Itoa(s.Retrieving)},
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
