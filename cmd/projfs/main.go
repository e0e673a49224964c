// Command projfs manages project trees in a projectfs store from the shell.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
	"github.com/nujan-io/nujan-ide-sub000/dirstore"
	"github.com/nujan-io/nujan-ide-sub000/internal/config"
	"github.com/nujan-io/nujan-ide-sub000/internal/logging"
	"github.com/nujan-io/nujan-ide-sub000/s3store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	storeType  string
	root       string
	logLevel   string
	stats      bool

	out    io.Writer
	errOut io.Writer

	cfg  *config.Config
	log  *zap.Logger
	reg  *prometheus.Registry
	fsys *projectfs.FS
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:               "projfs",
		Short:             "Manage project files in a projectfs store",
		Long:              "projfs reads and writes project trees kept in memory, in a local directory or in an S3 bucket.",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (.toml, .yaml or .yml)")
	flags.StringVar(&a.storeType, "store", "", "store type: mem, dir or s3")
	flags.StringVar(&a.root, "root", "", "root directory of the dir store")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.stats, "stats", false, "print store operation counts on exit")

	rootCmd.AddCommand(
		a.lsCmd(),
		a.treeCmd(),
		a.catCmd(),
		a.putCmd(),
		a.mkdirCmd(),
		a.mvCmd(),
		a.cpCmd(),
		a.rmCmd(),
		a.duCmd(),
		a.zipCmd(),
		a.unzipCmd(),
		a.importCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no store needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		PersistentPostRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "projfs %s\n", version)
		},
	}
}

// setup loads configuration, applies flag overrides and opens the store.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storeType != "" {
		cfg.Store.Type = a.storeType
	}
	if a.root != "" {
		cfg.Store.Root = a.root
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Development = cfg.Log.Development
	if a.log, err = logging.New(logCfg); err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	ttl := cfg.Cache.TTL.Duration
	a.fsys = projectfs.New(store,
		projectfs.WithLogger(a.log),
		projectfs.WithCacheConfig(cfg.Cache.Enabled, ttl, ttl/2, cfg.Cache.MaxEntries),
		projectfs.WithMetrics(a.reg),
	)

	a.log.Debug("store opened", zap.String("type", cfg.Store.Type))
	return nil
}

func (a *app) openStore(ctx context.Context) (projectfs.Store, error) {
	switch a.cfg.Store.Type {
	case config.StoreDir:
		return dirstore.New(a.cfg.Store.Root)
	case config.StoreS3:
		s3cfg := a.cfg.S3
		return s3store.New(ctx, s3store.Config{
			Bucket:          s3cfg.Bucket,
			Prefix:          s3cfg.Prefix,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			UsePathStyle:    s3cfg.UsePathStyle,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		}, s3store.WithLogger(a.log))
	default:
		return projectfs.NewMemStore()
	}
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.stats && a.reg != nil {
		a.printStats()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// printStats writes one line per store operation and outcome.
func (a *app) printStats() {
	families, err := a.reg.Gather()
	if err != nil {
		fmt.Fprintf(a.errOut, "gather metrics: %v\n", err)
		return
	}

	var lines []string
	for _, mf := range families {
		if mf.GetName() != "projectfs_store_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%-28s %6.0f", strings.Join(labels, " "), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(a.errOut, l)
	}
}
