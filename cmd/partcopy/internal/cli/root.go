package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ygrebnov/taskrunner/internal/config"
	"github.com/ygrebnov/taskrunner/internal/logger"
	"github.com/ygrebnov/taskrunner/internal/multipart"
	"github.com/ygrebnov/taskrunner/internal/output"
	"github.com/ygrebnov/taskrunner/metrics"
)

// app carries what every command needs once flags have been parsed.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     *output.Printer
	metrics *metrics.Registry
}

// NewRootCmd builds the partcopy command tree.
func NewRootCmd() *cobra.Command {
	a := &app{metrics: metrics.NewRegistry()}
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "partcopy",
		Short: "Copy files and inventory archives into a part-addressed object store",
		Long: `partcopy uploads files in fixed-size parts, several parts at a time,
and tracks which archives of an inventory have been uploaded.

Configuration is read from defaults, an optional YAML file (--config),
PARTCOPY_* environment variables and flags, later sources winning.

EXAMPLES:
  # Upload one file in 8 MiB parts
  partcopy upload ./backup.tar --part-size-mib 8

  # Compute the multipart ETag a file will get
  partcopy checksum ./backup.tar

  # Upload up to 20 downloaded archives, two at a time
  partcopy inventory upload --inventory inventory.json --concurrency 2

  # List interrupted uploads and discard them
  partcopy uploads --abort

  # Show inventory progress as JSON
  partcopy inventory status --inventory inventory.json -o json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, cfgPath)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.logMetrics()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&cfgPath, "config", "", "path to a YAML config file")
	f.Uint("concurrency", 1, "number of files transferred at the same time")
	f.Uint("part-concurrency", multipart.DefaultConcurrency, "number of parts of one file uploaded at the same time")
	f.Int("part-size-mib", multipart.DefaultPartSize>>20, "part size in MiB")
	f.String("store-dir", "", "root directory of the object store (default ./partcopy-store)")
	f.String("bucket", "", "bucket (subdirectory of the store) to upload into (default \"default\")")
	f.String("log-level", "info", "log level: debug, info, warn or error")
	f.String("log-format", "text", "log format: text or json")
	f.StringP("output", "o", "table", "output format: table, json or yaml")

	cmd.AddCommand(newUploadCmd(a))
	cmd.AddCommand(newChecksumCmd(a))
	cmd.AddCommand(newUploadsCmd(a))
	cmd.AddCommand(newInventoryCmd(a))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs partcopy with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, cfgPath string) error {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return err
	}
	l, err := logger.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	out, err := output.NewPrinter(cmd.OutOrStdout(), cfg.Output)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.out = cfg, l, out
	return nil
}

func (a *app) partOptions() multipart.Options {
	return multipart.Options{
		PartSize:    a.cfg.PartSize(),
		Concurrency: a.cfg.PartConcurrency,
		Logger:      a.logger,
		Metrics:     a.metrics,
	}
}

func (a *app) store() (*multipart.DirStore, error) {
	return multipart.NewDirStore(filepath.Join(a.cfg.StoreDir, a.cfg.Bucket))
}

func (a *app) uploader() (*multipart.Uploader, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	return multipart.NewUploader(store, a.partOptions())
}

func (a *app) logMetrics() {
	if a.logger == nil {
		return
	}
	snap := a.metrics.Snapshot()
	attrs := make([]any, 0, len(snap.Counters)*2)
	for _, name := range snap.Names() {
		if v, ok := snap.Counters[name]; ok {
			attrs = append(attrs, name, v)
		}
	}
	if len(attrs) > 0 {
		a.logger.Debug("run metrics", attrs...)
	}
}

func countLabel(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
