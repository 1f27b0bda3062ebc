package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quidome/movrename-go/pkg/config"
	"github.com/quidome/movrename-go/pkg/rename"
	"github.com/quidome/movrename-go/pkg/resolve"
	"github.com/quidome/movrename-go/pkg/scan"
	"github.com/quidome/movrename-go/pkg/watch"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		format     string
		extensions string
		systemTime bool
		fixMTime   bool
		settle     time.Duration
	)

	watchCmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Watch a directory and rename arriving movie files",
		Long:  "Watch a directory tree and rename matching files after their embedded timestamps once they have finished arriving. Runs until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("format") {
				format = cfg.Format
			}
			if !cmd.Flags().Changed("extension") {
				extensions = cfg.Extensions
			}
			if !cmd.Flags().Changed("fix-mtime") {
				fixMTime = cfg.FixModTime
			}

			mode := resolve.ModeDefault
			if systemTime {
				mode = resolve.ModeSystem
			}

			s := settings{
				format:     format,
				extensions: extensions,
				mode:       mode,
				fixMTime:   fixMTime,
				dryRun:     opts.dryRun,
				verbose:    opts.verbose,
				assumeYes:  true, // no prompt, nobody is at the keyboard
				maxDepth:   -1,
			}

			pattern, err := scan.Pattern(extensions)
			if err != nil {
				return err
			}

			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

			w, err := watch.New(args[0], pattern, settle, func(paths []string) {
				if err := runPipeline(cmd, paths, s); err != nil {
					logger.Printf("rename failed: %v", err)
				}
			}, logger)
			if err != nil {
				return err
			}
			defer w.Close()

			cmd.Printf("watching %s\n", args[0])

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			return nil
		},
	}

	watchCmd.Flags().StringVarP(&format, "format", "f", rename.DefaultFormat, "strftime pattern for new file names")
	watchCmd.Flags().StringVarP(&extensions, "extension", "e", scan.DefaultExtensions, "extensions to match, as an alternation like \"mov|mp4\"")
	watchCmd.Flags().BoolVarP(&systemTime, "system-time", "s", false, "use the file modification time instead of metadata")
	watchCmd.Flags().BoolVarP(&fixMTime, "fix-mtime", "x", false, "also set the file modification time to the chosen timestamp")
	watchCmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "wait this long after the last write before renaming")

	return watchCmd
}
