package cli

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hupe1980/asynctrace/core"
	"github.com/hupe1980/asynctrace/hostloop"
)

func newReadCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "read <file>...",
		Short: "Read files and print the traced operations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed error
			err := f.trace(cmd, func(loop *hostloop.Loop) error {
				for _, path := range args {
					loop.ReadFile(path, func(data []byte, err error) {
						if err != nil {
							failed = fmt.Errorf("read %s: %w", path, err)
							return
						}
						fmt.Fprintf(cmd.ErrOrStderr(), "read %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
			return failed
		},
	}
}

func newStatCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>...",
		Short: "Stat paths and print the traced operations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed error
			err := f.trace(cmd, func(loop *hostloop.Loop) error {
				for _, path := range args {
					loop.Stat(path, func(info fs.FileInfo, err error) {
						if err != nil {
							failed = fmt.Errorf("stat %s: %w", path, err)
							return
						}
						fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s modified %s\n",
							info.Mode(), path, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
			return failed
		},
	}
}

func newWatchCmd(f *flags) *cobra.Command {
	var (
		changes int
		window  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Watch a path and print the traced operations",
		Long:  "Watches a file or directory until --changes changes were seen or --for elapsed, then prints the snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.trace(cmd, func(loop *hostloop.Loop) error {
				var (
					w     *hostloop.Watcher
					timer core.ID
					seen  int
				)
				w, err := loop.Watch(args[0], func(ev fsnotify.Event, err error) {
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
						return
					}
					seen++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ev.Op, ev.Name)
					if changes > 0 && seen >= changes {
						_ = w.Close()
						loop.ClearTimeout(timer)
					}
				})
				if err != nil {
					return err
				}
				timer = loop.SetTimeout(func() { _ = w.Close() }, window)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&changes, "changes", "n", 1, "Stop after this many changes (0 waits for --for)")
	cmd.Flags().DurationVar(&window, "for", 10*time.Second, "Stop watching after this long")
	return cmd
}
