package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ygrebnov/taskrunner"
	"github.com/ygrebnov/taskrunner/internal/multipart"
)

func newUploadsCmd(a *app) *cobra.Command {
	var (
		abort bool
		id    string
	)
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List multipart uploads in progress and optionally abort them",
		Long: `List uploads that were started but never completed or aborted, for
example because partcopy was interrupted. With --abort every listed upload is
aborted and its parts discarded; add --id to abort a single upload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id != "" && !abort {
				return errors.New("--id requires --abort")
			}
			return a.runUploads(cmd.Context(), abort, id)
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the listed uploads")
	cmd.Flags().StringVar(&id, "id", "", "abort only the upload with this id")
	return cmd
}

func (a *app) runUploads(ctx context.Context, abort bool, id string) error {
	store, err := a.store()
	if err != nil {
		return err
	}
	uploads, err := store.Uploads()
	if err != nil {
		return err
	}

	report := uploadsReport{Uploads: make([]uploadState, 0, len(uploads))}
	if !abort {
		for _, u := range uploads {
			report.Uploads = append(report.Uploads, uploadState{Upload: u, State: "in progress"})
		}
		if err := a.out.Print(report); err != nil {
			return err
		}
		if len(uploads) > 0 {
			a.out.Info("Not asked to abort, leaving %s in place", countLabel(len(uploads), "upload"))
		}
		return nil
	}

	tasks := make([]*taskrunner.Task[multipart.Upload, struct{}], 0, len(uploads))
	for _, u := range uploads {
		if id != "" && u.ID != id {
			continue
		}
		tasks = append(tasks, taskrunner.NewTask(u, func(ctx context.Context, u multipart.Upload) (struct{}, error) {
			return struct{}{}, store.Abort(ctx, u.ID)
		}).SetIndex(len(tasks)+1))
	}
	if id != "" && len(tasks) == 0 {
		return fmt.Errorf("%w: %s", multipart.ErrNoSuchUpload, id)
	}

	outcomes, err := taskrunner.RunAll(ctx, tasks,
		taskrunner.WithConcurrency(a.cfg.PartConcurrency),
		taskrunner.WithLogger(a.logger),
		taskrunner.WithMetrics(a.metrics),
		taskrunner.WithName("abort"),
	)
	for _, o := range outcomes {
		state := uploadState{Upload: o.Task.Payload(), State: "aborted"}
		if o.Failed() {
			state.State, state.Error = "failed", o.Err.Error()
		}
		report.Uploads = append(report.Uploads, state)
	}
	if printErr := a.out.Print(report); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("abort uploads: %w", err)
	}
	a.out.Success("Aborted %s", countLabel(len(outcomes), "upload"))
	return nil
}
