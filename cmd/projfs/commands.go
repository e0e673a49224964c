package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
	"github.com/nujan-io/nujan-ide-sub000/archive"
	"github.com/nujan-io/nujan-ide-sub000/tree"
)

func argOr(args []string, i int, def string) string {
	if len(args) > i {
		return args[i]
	}
	return def
}

func (a *app) lsCmd() *cobra.Command {
	var opts projectfs.ReadDirOptions
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.fsys.ReadDir(cmd.Context(), argOr(args, 0, "/"), opts)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(a.out, n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "list subdirectories too")
	cmd.Flags().BoolVar(&opts.OnlyDir, "dirs", false, "only list directories")
	return cmd
}

func (a *app) treeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Print a directory tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := tree.Read(cmd.Context(), a.fsys, argOr(args, 0, "/"))
			if err != nil {
				return err
			}
			if asJSON {
				if nodes == nil {
					nodes = []tree.Node{}
				}
				data, err := sonic.MarshalIndent(nodes, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, string(data))
				return nil
			}
			for _, n := range nodes {
				name := n.Name
				if n.IsDir() {
					name += "/"
				}
				fmt.Fprintf(a.out, "%s%s\n", strings.Repeat("  ", strings.Count(n.Path, "/")), name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print nodes as JSON")
	return cmd
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.fsys.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}

func (a *app) putCmd() *cobra.Command {
	var noOverwrite bool
	cmd := &cobra.Command{
		Use:   "put <local-file> <path>",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			got, err := a.fsys.WriteFile(cmd.Context(), args[1], data, projectfs.WriteOptions{Overwrite: !noOverwrite})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, got)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "write to a fresh name if the path is taken")
	return cmd
}

func (a *app) mkdirCmd() *cobra.Command {
	var noOverwrite bool
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			got, err := a.fsys.Mkdir(cmd.Context(), args[0], projectfs.MkdirOptions{Overwrite: !noOverwrite})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, got)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "create a fresh name if the path is taken")
	return cmd
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fsys.Rename(cmd.Context(), args[0], args[1])
		},
	}
}

func (a *app) cpCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "cp <old> <new>",
		Short: "Copy a file, or a directory with -r",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recursive {
				return a.fsys.CopyDir(cmd.Context(), args[0], args[1])
			}
			return a.fsys.Copy(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "copy directories")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	var opts projectfs.RemoveOptions
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fsys.Remove(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

func (a *app) duCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "du [path]",
		Short: "Summarize disk usage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.fsys.DiskUsage(cmd.Context(), argOr(args, 0, "/"))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "files: %d\ndirectories: %d\nbytes: %d\n", u.Files, u.Directories, u.Bytes)
			if u.VirtualFiles > 0 {
				fmt.Fprintf(a.out, "virtual files: %d\nvirtual bytes: %d\n", u.VirtualFiles, u.VirtualBytes)
			}
			return nil
		},
	}
}

func (a *app) zipCmd() *cobra.Command {
	var ignore []string
	cmd := &cobra.Command{
		Use:   "zip <local-archive> <path>...",
		Short: "Export paths to a zip archive",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer
			opts := archive.ExportOptions{}
			if cmd.Flags().Changed("ignore") {
				opts.Ignore = ignore
			}
			if err := archive.Export(cmd.Context(), a.fsys, &buf, args[1:], opts); err != nil {
				return err
			}
			size := buf.Len()
			if err := atomic.WriteFile(args[0], &buf); err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}
			a.log.Info("archive written", zap.String("file", args[0]), zap.Int("bytes", size))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "glob patterns to leave out (replaces the defaults)")
	return cmd
}

func (a *app) unzipCmd() *cobra.Command {
	var dryRun, noOverwrite bool
	cmd := &cobra.Command{
		Use:   "unzip <local-archive> <dest>",
		Short: "Extract a zip archive into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			opts := archive.ImportOptions{Overwrite: !noOverwrite}
			if dryRun {
				files, err := archive.Extract(f, info.Size(), opts)
				if err != nil {
					return err
				}
				for _, file := range files {
					fmt.Fprintf(a.out, "%s\t%d\t%s\n", path.Join(args[1], file.Path), len(file.Content), file.MIME)
				}
				return nil
			}

			written, err := archive.Import(cmd.Context(), f, info.Size(), a.fsys, args[1], opts)
			for _, p := range written {
				fmt.Fprintln(a.out, p)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the entries without writing them")
	cmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "write files to fresh names when their path is taken")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var noOverwrite bool
	cmd := &cobra.Command{
		Use:   "import <local-dir> <dest>",
		Short: "Copy a local directory tree into the store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ig, err := archive.NewIgnore(nil)
			if err != nil {
				return err
			}
			entries, err := scanLocal(args[0], ig)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			for _, e := range entries {
				target := path.Join("/", args[1], e.rel)
				if e.dir {
					if _, err := a.fsys.Mkdir(ctx, target, projectfs.MkdirOptions{Overwrite: true}); err != nil {
						return err
					}
					continue
				}
				data, err := os.ReadFile(e.local)
				if err != nil {
					return err
				}
				if _, err := a.fsys.WriteFile(ctx, target, data, projectfs.WriteOptions{Overwrite: !noOverwrite}); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "imported %d entries\n", len(entries))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "write files to fresh names when their path is taken")
	return cmd
}

type localEntry struct {
	local string
	rel   string
	dir   bool
}

// scanLocal walks root on disk and returns its entries sorted by relative
// path, so parents come before their children.
func scanLocal(root string, ig archive.Ignore) ([]localEntry, error) {
	var (
		mu      sync.Mutex
		entries []localEntry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ig.Match(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		entries = append(entries, localEntry{local: p, rel: rel, dir: d.IsDir()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}
