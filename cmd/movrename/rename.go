package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quidome/movrename-go/pkg/config"
	"github.com/quidome/movrename-go/pkg/quicktime"
	"github.com/quidome/movrename-go/pkg/rename"
	"github.com/quidome/movrename-go/pkg/report"
	"github.com/quidome/movrename-go/pkg/resolve"
	"github.com/quidome/movrename-go/pkg/scan"
)

// settings carries everything the rename pipeline needs, after the
// configuration layers (defaults, file, environment, flags) are merged.
type settings struct {
	format     string
	extensions string
	mode       resolve.Mode
	warn       bool
	skip       bool
	fixMTime   bool
	dryRun     bool
	verbose    bool
	assumeYes  bool
	reportPath string
	maxDepth   int
}

func newRenameCmd(opts *options) *cobra.Command {
	var (
		format     string
		extensions string
		advanced   bool
		systemTime bool
		warn       bool
		skip       bool
		fixMTime   bool
		assumeYes  bool
		reportPath string
		maxDepth   int
	)

	renameCmd := &cobra.Command{
		Use:   "rename [files or directories...]",
		Short: "Rename movie files after their embedded timestamps",
		Long:  "Rename movie files after the creation/modification timestamps in their QuickTime headers. Arguments may be files, directories (scanned recursively) or glob patterns.",
		Args:  cobra.MinimumNArgs(1),
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

			mode := resolve.Mode(cfg.Mode)
			switch {
			case advanced:
				mode = resolve.ModeAdvanced
			case systemTime:
				mode = resolve.ModeSystem
			}

			s := settings{
				format:     format,
				extensions: extensions,
				mode:       mode,
				warn:       warn,
				skip:       skip,
				fixMTime:   fixMTime,
				dryRun:     opts.dryRun,
				verbose:    opts.verbose,
				assumeYes:  assumeYes,
				reportPath: reportPath,
				maxDepth:   maxDepth,
			}

			files, err := scan.Collect(args, scan.Options{
				Extensions: s.extensions,
				MaxDepth:   s.maxDepth,
			})
			if err != nil {
				return err
			}

			return runPipeline(cmd, files, s)
		},
	}

	renameCmd.Flags().StringVarP(&format, "format", "f", rename.DefaultFormat, "strftime pattern for new file names")
	renameCmd.Flags().StringVarP(&extensions, "extension", "e", scan.DefaultExtensions, "extensions to match, as an alternation like \"mov|mp4\"")
	renameCmd.Flags().BoolVarP(&advanced, "advanced", "a", false, "choose the timestamp source interactively")
	renameCmd.Flags().BoolVarP(&systemTime, "system-time", "s", false, "use the file modification time instead of metadata")
	renameCmd.Flags().BoolVarP(&warn, "warn", "w", false, "mark files whose timestamps disagree")
	renameCmd.Flags().BoolVarP(&skip, "skip-inconsistent", "i", false, "skip files whose timestamps disagree")
	renameCmd.Flags().BoolVarP(&fixMTime, "fix-mtime", "x", false, "also set the file modification time to the chosen timestamp")
	renameCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "rename without asking for confirmation")
	renameCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this path")
	renameCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum directory recursion depth (-1 = unlimited)")

	renameCmd.MarkFlagsMutuallyExclusive("advanced", "system-time")

	return renameCmd
}

// entry is one file moving through the pipeline.
type entry struct {
	path    string
	modTime time.Time
	result  resolve.Result
	err     error
}

func runPipeline(cmd *cobra.Command, files []string, s settings) error {
	run := report.New(string(s.mode), s.dryRun)

	// One shared reader, so the source selection and the confirmation
	// prompt do not steal buffered input from each other.
	input := bufio.NewReader(cmd.InOrStdin())

	entries := probeFiles(cmd, files, s)

	if s.mode == resolve.ModeAdvanced {
		if err := chooseAdvanced(cmd, input, entries); err != nil {
			return err
		}
	}

	items := make([]rename.Item, 0, len(entries))
	live := make([]*entry, 0, len(entries))
	for _, e := range entries {
		if e.err != nil {
			cmd.PrintErrf("%s: %v\n", e.path, e.err)
			run.Items = append(run.Items, report.Item{
				Path:   e.path,
				Status: report.StatusFailed,
				Error:  e.err.Error(),
			})
			continue
		}
		if s.skip && !e.result.Consistent {
			if s.verbose {
				cmd.PrintErrf("%s: timestamps disagree, skipped\n", e.path)
			}
			run.Items = append(run.Items, report.Item{
				Path:   e.path,
				Source: string(e.result.Source),
				Status: report.StatusSkipped,
			})
			continue
		}
		items = append(items, rename.Item{Path: e.path, Time: e.result.Chosen})
		live = append(live, e)
	}

	ops, err := rename.Plan(items, rename.Options{
		Format: s.format,
		Exists: rename.ExistsOnDisk,
	})
	if err != nil {
		return err
	}

	if len(ops) == 0 {
		cmd.Println("nothing to rename")
		return finishReport(run, s)
	}

	printPlan(cmd, ops, live, s)

	if !s.dryRun && !s.assumeYes && !confirm(cmd, input) {
		cmd.Println("aborted")
		return finishReport(run, s)
	}

	if s.dryRun {
		for i, op := range ops {
			status := report.StatusKept
			if op.Action == rename.ActionRename {
				status = report.StatusRenamed
			}
			run.Items = append(run.Items, planItem(op, live[i], status))
		}
		return finishReport(run, s)
	}

	results, err := rename.Execute(ops, rename.Options{FixModTime: s.fixMTime})
	if err != nil {
		return err
	}
	for i, res := range results {
		item := planItem(res.Operation, live[i], report.StatusKept)
		switch {
		case res.Error != nil:
			cmd.PrintErrf("%s: %v\n", res.Operation.Path, res.Error)
			item.Status = report.StatusFailed
			item.Error = res.Error.Error()
		case res.Renamed:
			item.Status = report.StatusRenamed
		}
		run.Items = append(run.Items, item)
	}

	return finishReport(run, s)
}

// probeFiles extracts and resolves timestamps for every file. Failures stay
// attached to their entry, one broken file never stops the batch.
func probeFiles(cmd *cobra.Command, files []string, s settings) []*entry {
	photos, err := scan.Pattern(scan.PhotoExtensions)
	if err != nil {
		photos = regexp.MustCompile(`\.^`) // never matches
	}

	entries := make([]*entry, 0, len(files))
	for _, path := range files {
		e := &entry{path: path}
		entries = append(entries, e)

		var extractor resolve.Extractor = quicktime.Extractor{}
		if photos.MatchString(path) {
			extractor = resolve.EXIFExtractor{}
		}

		extraction, modTime, err := probe(path, extractor)
		if err != nil {
			e.err = err
			continue
		}
		e.modTime = modTime

		if s.verbose {
			for _, warning := range extraction.Warnings {
				cmd.PrintErrf("%s: %v\n", path, warning)
			}
		}

		e.result, e.err = resolve.Resolve(extraction.Candidates, resolve.Options{
			Mode:     s.mode,
			FileTime: modTime,
		})
	}

	return entries
}

// probe opens one file, extracts its timestamp candidates and returns them
// together with the file modification time.
func probe(path string, extractor resolve.Extractor) (resolve.Extraction, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return resolve.Extraction{}, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return resolve.Extraction{}, time.Time{}, err
	}

	extraction, err := extractor.Extract(f)
	if err != nil {
		return resolve.Extraction{}, time.Time{}, err
	}

	return extraction, info.ModTime().UTC(), nil
}

// printPlan lists the planned renames grouped by directory.
func printPlan(cmd *cobra.Command, ops []rename.Operation, live []*entry, s settings) {
	byDir := make(map[string][]int)
	var dirs []string
	for i, op := range ops {
		dir := filepath.Dir(op.Path)
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], i)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		cmd.Printf("%s:\n", dir)
		for _, i := range byDir[dir] {
			op := ops[i]
			marker := ""
			if s.warn && !live[i].result.Consistent {
				marker = " x"
			}
			if op.Action == rename.ActionKeep {
				cmd.Printf("  %s (keeps its name)%s\n", filepath.Base(op.Path), marker)
				continue
			}
			cmd.Printf("  %s -> %s%s\n", filepath.Base(op.Path), filepath.Base(op.NewPath), marker)
		}
	}
}

// confirm asks before renaming. Any answer starting with "y" is a yes.
func confirm(cmd *cobra.Command, input *bufio.Reader) bool {
	cmd.Print("OK? ")
	line, err := input.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(answer, "y")
}

func planItem(op rename.Operation, e *entry, status string) report.Item {
	chosen := op.Time.UTC()
	item := report.Item{
		Path:       op.Path,
		Source:     string(e.result.Source),
		Chosen:     &chosen,
		Consistent: e.result.Consistent,
		Status:     status,
	}
	if op.Action == rename.ActionRename {
		item.NewPath = op.NewPath
	}
	return item
}

func finishReport(run *report.RunReport, s settings) error {
	if s.reportPath == "" {
		return nil
	}
	run.Finalize()
	if err := run.WriteFile(s.reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
