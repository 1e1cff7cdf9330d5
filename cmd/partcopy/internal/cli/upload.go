package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ygrebnov/taskrunner/internal/multipart"
)

func newUploadCmd(a *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file in parts",
		Long: `Upload a file to the store, split into parts of --part-size-mib.
Up to --part-concurrency parts are uploaded at the same time; reading the
file pauses while that many are in flight.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpload(cmd.Context(), args[0], key)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "object key (defaults to the file's base name)")
	return cmd
}

func (a *app) runUpload(ctx context.Context, path, key string) error {
	if key == "" {
		key = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	u, err := a.uploader()
	if err != nil {
		return err
	}
	res, err := u.Upload(ctx, key, f)
	if err != nil {
		return err
	}

	a.out.Success("Uploaded %s as %s in %s", path, key, countLabel(len(res.Parts), "part"))
	return a.out.Print(uploadReport{File: path, Result: res})
}

func newChecksumCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <file>",
		Short: "Compute the multipart ETag of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChecksum(cmd.Context(), args[0])
		},
	}
}

func (a *app) runChecksum(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := a.partOptions()
	opts.Progress = func(p multipart.Part) {
		a.logger.Debug("part hashed", "part", p.Number, "etag", p.ETag)
	}
	sum, err := multipart.Checksum(ctx, f, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return a.out.Print(checksumReport{File: path, Sum: sum})
}
