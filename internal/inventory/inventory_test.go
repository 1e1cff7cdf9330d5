package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "VaultARN": "arn:aws:glacier:eu-west-1:1:vaults/photos",
  "InventoryDate": "2020-01-01T00:00:00Z",
  "ArchiveList": [
    {"ArchiveId": "a1", "ArchiveDescription": "one.zip", "Size": 10},
    {"ArchiveId": "a2", "JobId": "j2", "Filename": "/data/two.zip"},
    {"ArchiveId": "a3", "JobId": "j3", "Filename": "/data/three.zip", "Downloaded": true},
    {"ArchiveId": "a4", "JobId": "j4", "Filename": "/data/four.zip", "Downloaded": true, "Uploaded": true},
    {"ArchiveId": "a5", "JobId": "j5", "Filename": "/data/sub/five.zip", "Downloaded": false},
    {"ArchiveId": "a6", "Downloaded": true}
  ]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	return path
}

func ids(archives []Archive) []string {
	out := make([]string, 0, len(archives))
	for _, a := range archives {
		out = append(out, a.ArchiveID)
	}
	return out
}

func TestEligibility(t *testing.T) {
	inv, err := Load(writeSample(t))
	require.NoError(t, err)
	require.Len(t, inv.ArchiveList, 6)

	// Markers count by presence, so Downloaded=false still marks a5.
	assert.Equal(t, []string{"a3", "a5"}, ids(inv.EligibleForUpload(0)))
	assert.Equal(t, []string{"a3"}, ids(inv.EligibleForUpload(1)))
	assert.Equal(t, []string{"a2"}, ids(inv.EligibleForDownload(20)))

	assert.Equal(t, Status{Total: 6, Initiated: 4, Downloaded: 4, Uploaded: 1, Pending: 2, Retrieving: 1}, inv.Status())
}

func TestArchive_Key(t *testing.T) {
	tests := map[string]string{
		"/data/sub/five.zip": "five.zip",
		`C:\data\six.zip`:    "six.zip",
		"plain.bin":          "plain.bin",
	}
	for filename, want := range tests {
		a := Archive{Filename: filename}
		assert.Equal(t, want, a.Key(), filename)
	}
}

func TestArchive_CheckLocal(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.zip")
	require.NoError(t, os.WriteFile(full, []byte("0123456789"), 0o600))

	tests := []struct {
		name    string
		archive Archive
		wantErr bool
	}{
		{name: "size matches", archive: Archive{ArchiveID: "a", Filename: full, Size: 10}},
		{name: "size unknown", archive: Archive{ArchiveID: "a", Filename: full}},
		{name: "truncated", archive: Archive{ArchiveID: "a", Filename: full, Size: 11}, wantErr: true},
		{name: "missing", archive: Archive{ArchiveID: "a", Filename: filepath.Join(dir, "nope")}, wantErr: true},
		{name: "directory", archive: Archive{ArchiveID: "a", Filename: dir}, wantErr: true},
		{name: "no file name", archive: Archive{ArchiveID: "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.archive.CheckLocal()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrIncomplete)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeSample(t)
	inv, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, inv.Save(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, inv, again)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Uploaded": false`)
	assert.Contains(t, string(data), `"Downloaded": false`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestTracker_ConcurrentMarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	inv := &Inventory{}
	for i := 0; i < 20; i++ {
		inv.ArchiveList = append(inv.ArchiveList, Archive{ArchiveID: fmt.Sprintf("a%02d", i), Filename: "f", Downloaded: ptr(true)})
	}
	require.NoError(t, inv.Save(path))

	tr := NewTracker(path, inv, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := tr.MarkUploaded(id); err != nil {
				t.Errorf("mark %s: %v", id, err)
			}
		}(fmt.Sprintf("a%02d", i))
	}
	wg.Wait()

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.EligibleForUpload(0))
	assert.Equal(t, 20, tr.Status().Uploaded)

	err = tr.MarkDownloaded("nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, strings.HasSuffix(err.Error(), "nope"))
}
