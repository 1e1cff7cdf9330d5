package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ygrebnov/taskrunner/internal/inventory"
	"github.com/ygrebnov/taskrunner/internal/multipart"
)

func init() {
	color.NoColor = true
}

// run executes partcopy with args against a temporary store and returns stdout.
func run(t *testing.T, store string, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--store-dir", store, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := bytes.Repeat([]byte("0123456789abcdef"), size/16+1)[:size]
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestUploadCommand(t *testing.T) {
	store, src := t.TempDir(), t.TempDir()
	path := writeFile(t, src, "backup.tar", 3<<20+5)

	out, err := run(t, store, "upload", path, "--part-size-mib", "1", "--key", "2024/backup.tar", "-o", "json")
	require.NoError(t, err)

	var report uploadReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "2024/backup.tar", report.Result.Key)
	assert.Len(t, report.Result.Parts, 4)
	assert.True(t, strings.HasSuffix(report.Result.ETag, "-4"))

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(store, "default", "2024", "backup.tar"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	sumOut, err := run(t, store, "checksum", path, "--part-size-mib", "1", "-o", "yaml")
	require.NoError(t, err)
	var sum checksumReport
	require.NoError(t, yaml.Unmarshal([]byte(sumOut), &sum))
	assert.Equal(t, report.Result.ETag, sum.Sum.ETag)
}

func TestUploadCommand_Errors(t *testing.T) {
	store := t.TempDir()

	_, err := run(t, store, "upload", filepath.Join(store, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, store, "upload")
	require.Error(t, err)

	_, err = run(t, store, "upload", "x", "--output", "xml")
	require.Error(t, err)
}

func TestInventoryCommands(t *testing.T) {
	store, src := t.TempDir(), t.TempDir()
	one := writeFile(t, src, "one.bin", 100)
	two := writeFile(t, src, "two.bin", 2<<20)

	inv := &inventory.Inventory{ArchiveList: []inventory.Archive{
		{ArchiveID: "a1", Filename: one, Downloaded: ptr(true)},
		{ArchiveID: "a2", JobID: "j2", Filename: src + "/pending.bin"},
		{ArchiveID: "a3", Filename: two, Downloaded: ptr(true)},
		{ArchiveID: "a4", Filename: filepath.Join(src, "gone.bin"), Downloaded: ptr(true)},
	}}
	invPath := filepath.Join(src, "inventory.json")
	require.NoError(t, inv.Save(invPath))

	out, err := run(t, store, "inventory", "upload", "--inventory", invPath, "--count", "2", "--concurrency", "2", "--part-size-mib", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "a3")
	assert.Contains(t, out, "Uploaded 2 archives")

	reloaded, err := inventory.Load(invPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a4"}, archiveIDs(reloaded.EligibleForUpload(0)))

	stored, err := os.ReadFile(filepath.Join(store, "default", "two.bin"))
	require.NoError(t, err)
	assert.Len(t, stored, 2<<20)

	// a4 points at a missing file: the run fails but the report is printed.
	out, err = run(t, store, "inventory", "upload", "--inventory", invPath, "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 archive of 1 failed")
	var report inventoryReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Archives, 1)
	assert.Equal(t, 1, report.Failed)
	assert.NotEmpty(t, report.Archives[0].Error)

	out, err = run(t, store, "inventory", "status", "--inventory", invPath, "-o", "json")
	require.NoError(t, err)
	var status statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, inventory.Status{Total: 4, Initiated: 1, Downloaded: 3, Uploaded: 2, Pending: 1, Retrieving: 1}, status.Status)

	_, err = run(t, store, "inventory", "status")
	require.Error(t, err, "--inventory is required")
}

func TestInventoryMarkDownloaded(t *testing.T) {
	store, src := t.TempDir(), t.TempDir()
	ready := writeFile(t, src, "ready.bin", 64)
	partial := writeFile(t, src, "partial.bin", 10)

	inv := &inventory.Inventory{ArchiveList: []inventory.Archive{
		{ArchiveID: "a1", JobID: "j1", Filename: ready, Size: 64},
		{ArchiveID: "a2", JobID: "j2", Filename: partial, Size: 64},
		{ArchiveID: "a3", JobID: "j3", Filename: filepath.Join(src, "missing.bin")},
		{ArchiveID: "a4", JobID: "j4", Filename: ready, Downloaded: ptr(true)},
		{ArchiveID: "a5"},
	}}
	invPath := filepath.Join(src, "inventory.json")
	require.NoError(t, inv.Save(invPath))

	out, err := run(t, store, "inventory", "mark-downloaded", "--inventory", invPath, "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 archives of 3 not downloaded")
	require.ErrorIs(t, err, inventory.ErrIncomplete)

	var report inventoryReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "downloaded", report.Action)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Archives, 3)
	assert.Equal(t, "a1", report.Archives[0].ArchiveID)
	assert.Empty(t, report.Archives[0].Error)

	reloaded, err := inventory.Load(invPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a4"}, archiveIDs(reloaded.EligibleForUpload(0)))
	assert.Equal(t, []string{"a2", "a3"}, archiveIDs(reloaded.EligibleForDownload(0)))

	out, err = run(t, store, "inventory", "mark-downloaded", "--inventory", invPath, "--count", "1")
	require.Error(t, err)
	assert.Contains(t, out, "a2")
	assert.NotContains(t, out, "a3")
}

func TestUploadsCommand(t *testing.T) {
	root := t.TempDir()
	store, err := multipart.NewDirStore(filepath.Join(root, "default"))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := store.Create(ctx, "first.bin")
	require.NoError(t, err)
	_, err = store.UploadPart(ctx, first, 1, []byte("abc"))
	require.NoError(t, err)
	second, err := store.Create(ctx, "second.bin")
	require.NoError(t, err)

	listed := func(t *testing.T, args ...string) uploadsReport {
		t.Helper()
		out, err := run(t, root, append([]string{"uploads", "-o", "json"}, args...)...)
		require.NoError(t, err)
		var report uploadsReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		return report
	}

	report := listed(t)
	require.Len(t, report.Uploads, 2)
	states := map[string]uploadState{}
	for _, u := range report.Uploads {
		states[u.ID] = u
	}
	assert.Equal(t, "in progress", states[first].State)
	assert.Equal(t, 1, states[first].Parts)
	assert.Equal(t, "second.bin", states[second].Key)

	_, err = run(t, root, "uploads", "--id", first)
	require.Error(t, err, "--id without --abort")

	_, err = run(t, root, "uploads", "--abort", "--id", "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, multipart.ErrNoSuchUpload)

	report = listed(t, "--abort", "--id", first)
	require.Len(t, report.Uploads, 1)
	assert.Equal(t, first, report.Uploads[0].ID)
	assert.Equal(t, "aborted", report.Uploads[0].State)

	report = listed(t, "--abort")
	require.Len(t, report.Uploads, 1)
	assert.Equal(t, second, report.Uploads[0].ID)

	assert.Empty(t, listed(t).Uploads)
}

func TestInventoryUpload_NothingEligible(t *testing.T) {
	store, src := t.TempDir(), t.TempDir()
	invPath := filepath.Join(src, "inventory.json")
	require.NoError(t, (&inventory.Inventory{ArchiveList: []inventory.Archive{{ArchiveID: "a1"}}}).Save(invPath))

	out, err := run(t, store, "inventory", "upload", "--inventory", invPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No archives eligible")
}

func TestConfigFileAndEnv(t *testing.T) {
	store, src := t.TempDir(), t.TempDir()
	cfgPath := filepath.Join(src, "partcopy.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("bucket: archive\npart_size_mib: 1\n"), 0o600))
	t.Setenv("PARTCOPY_OUTPUT", "json")

	path := writeFile(t, src, "f.bin", 1<<20+1)
	out, err := run(t, store, "--config", cfgPath, "upload", path)
	require.NoError(t, err)

	var report uploadReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Result.Parts, 2)
	_, err = os.Stat(filepath.Join(store, "archive", "f.bin"))
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, fmt.Sprintf("partcopy %s", version)))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "25.0 MiB", humanSize(multipart.DefaultPartSize))
}

func archiveIDs(archives []inventory.Archive) []string {
	ids := make([]string, 0, len(archives))
	for _, a := range archives {
		ids = append(ids, a.ArchiveID)
	}
	return ids
}

func ptr[T any](v T) *T { return &v }
