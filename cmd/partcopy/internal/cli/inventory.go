package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ygrebnov/taskrunner"
	"github.com/ygrebnov/taskrunner/internal/inventory"
	"github.com/ygrebnov/taskrunner/internal/multipart"
)

const defaultCount = 20

func newInventoryCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Work with an archive inventory file",
	}
	cmd.PersistentFlags().StringVar(&path, "inventory", "", "path to the inventory JSON file")
	_ = cmd.MarkPersistentFlagRequired("inventory")

	var count int
	upload := &cobra.Command{
		Use:   "upload",
		Short: "Upload downloaded archives and mark them as uploaded",
		Long: `Upload up to --count archives that have been downloaded to a local file
and are not yet marked as uploaded. --concurrency archives are uploaded at the
same time. The inventory is rewritten after every successful upload, so an
interrupted run can be resumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInventoryUpload(cmd.Context(), path, count)
		},
	}
	upload.Flags().IntVar(&count, "count", defaultCount, "maximum number of archives to upload (0 for all)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show how many archives are in each transfer stage",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runInventoryStatus(path)
		},
	}

	var downloadCount int
	markDownloaded := &cobra.Command{
		Use:   "mark-downloaded",
		Short: "Mark retrieved archives whose local file is complete as downloaded",
		Long: `Check up to --count archives that have a retrieval job and a target file
but no Downloaded marker. Every archive whose file exists with the size the
inventory records is marked as downloaded, which makes it eligible for
"inventory upload".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMarkDownloaded(cmd.Context(), path, downloadCount)
		},
	}
	markDownloaded.Flags().IntVar(&downloadCount, "count", defaultCount, "maximum number of archives to check (0 for all)")

	cmd.AddCommand(upload, markDownloaded, status)
	return cmd
}

func (a *app) runInventoryStatus(path string) error {
	inv, err := inventory.Load(path)
	if err != nil {
		return err
	}
	return a.out.Print(statusReport{Inventory: path, Status: inv.Status()})
}

func (a *app) runInventoryUpload(ctx context.Context, path string, count int) error {
	inv, err := inventory.Load(path)
	if err != nil {
		return err
	}

	eligible := inv.EligibleForUpload(count)
	if len(eligible) == 0 {
		a.out.Info("No archives eligible for upload in %s", path)
		return a.out.Print(inventoryReport{Action: "uploaded", Archives: []archiveResult{}})
	}

	u, err := a.uploader()
	if err != nil {
		return err
	}
	up := &archiveUploader{Uploader: u}
	tracker := inventory.NewTracker(path, inv, a.logger)

	runner, err := taskrunner.New[inventory.Archive, *multipart.Result](
		taskrunner.WithConcurrency(a.cfg.Concurrency),
		taskrunner.WithLogger(a.logger),
		taskrunner.WithMetrics(a.metrics),
		taskrunner.WithName("inventory"),
	)
	if err != nil {
		return err
	}

	// A failed archive is reported and the rest continue.
	runner.SetErrorCallback(func(task *taskrunner.Task[inventory.Archive, *multipart.Result], err error) bool {
		a.logger.Error("archive upload failed", "archive_id", task.Payload().ArchiveID, "err", err)
		return false
	})

	var (
		markMu   sync.Mutex
		markErrs []error
	)
	runner.Subscribe(taskrunner.Hooks[inventory.Archive, *multipart.Result]{
		Start: func(task *taskrunner.Task[inventory.Archive, *multipart.Result], s taskrunner.Stats) {
			arc := task.Payload()
			a.logger.Info("uploading archive", "archive_id", arc.ArchiveID, "file", arc.Filename, "queued", s.Queued)
		},
		Stop: func(err error, task *taskrunner.Task[inventory.Archive, *multipart.Result], _ *multipart.Result, _ taskrunner.Stats) {
			if err != nil {
				return
			}
			if err := tracker.MarkUploaded(task.Payload().ArchiveID); err != nil {
				markMu.Lock()
				markErrs = append(markErrs, err)
				markMu.Unlock()
			}
		},
	})

	tasks := make([]*taskrunner.Task[inventory.Archive, *multipart.Result], 0, len(eligible))
	for i, arc := range eligible {
		tasks = append(tasks, taskrunner.NewTask(arc, up.uploadArchive).SetIndex(i+1))
	}
	if err := runner.Execute(ctx, tasks); err != nil {
		return err
	}
	outcomes, err := taskrunner.Collect(ctx, runner)
	if err != nil {
		return err
	}

	report := taskrunner.Fold(outcomes, inventoryReport{Action: "uploaded"}, func(r inventoryReport, o taskrunner.Outcome[inventory.Archive, *multipart.Result]) inventoryReport {
		arc := o.Task.Payload()
		res := archiveResult{Index: o.Index(), ArchiveID: arc.ArchiveID, Key: arc.Key()}
		if o.Failed() {
			res.Error = o.Err.Error()
			r.Failed++
		} else {
			res.ETag = o.Result.ETag
		}
		r.Archives = append(r.Archives, res)
		return r
	})
	if err := a.out.Print(report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return fmt.Errorf("%s of %d failed to upload", countLabel(report.Failed, "archive"), len(outcomes))
	}
	if err := errors.Join(markErrs...); err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	a.out.Success("Uploaded %s", countLabel(len(outcomes), "archive"))
	return nil
}

func (a *app) runMarkDownloaded(ctx context.Context, path string, count int) error {
	inv, err := inventory.Load(path)
	if err != nil {
		return err
	}

	eligible := inv.EligibleForDownload(count)
	if len(eligible) == 0 {
		a.out.Info("No archives waiting for download in %s", path)
		return a.out.Print(inventoryReport{Action: "downloaded", Archives: []archiveResult{}})
	}

	tracker := inventory.NewTracker(path, inv, a.logger)
	tasks := make([]*taskrunner.Task[inventory.Archive, struct{}], 0, len(eligible))
	for i, arc := range eligible {
		tasks = append(tasks, taskrunner.NewTask(arc, func(_ context.Context, arc inventory.Archive) (struct{}, error) {
			if err := arc.CheckLocal(); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, tracker.MarkDownloaded(arc.ArchiveID)
		}).SetIndex(i+1))
	}

	outcomes, err := taskrunner.RunAll(ctx, tasks,
		taskrunner.WithConcurrency(a.cfg.Concurrency),
		taskrunner.WithLogger(a.logger),
		taskrunner.WithMetrics(a.metrics),
		taskrunner.WithName("inventory"),
	)
	report := inventoryReport{Action: "downloaded"}
	for _, o := range outcomes {
		arc := o.Task.Payload()
		res := archiveResult{Index: o.Index(), ArchiveID: arc.ArchiveID, Key: arc.Key()}
		if o.Failed() {
			res.Error = o.Err.Error()
			report.Failed++
		}
		report.Archives = append(report.Archives, res)
	}
	if printErr := a.out.Print(report); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("%s of %d not downloaded: %w", countLabel(report.Failed, "archive"), len(outcomes), err)
	}
	a.out.Success("Marked %s as downloaded", countLabel(len(outcomes), "archive"))
	return nil
}

type archiveUploader struct {
	*multipart.Uploader
}

// uploadArchive is the task body for one inventory archive.
func (u *archiveUploader) uploadArchive(ctx context.Context, arc inventory.Archive) (*multipart.Result, error) {
	f, err := os.Open(arc.Filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return u.Upload(ctx, arc.Key(), f)
}
