package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

type options struct {
	verbose bool
	dryRun  bool
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "movrename",
		Short:   "A CLI tool to rename movie files after their recording date",
		Long:    "movrename renames QuickTime-family movie files (and EXIF-bearing photos) after the creation or modification timestamps embedded in their metadata, reconciled with the file's own modification time.",
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("movrename")
			cmd.Printf("Version: %s\n", version)
			if opts.verbose {
				cmd.Println("Verbose mode: enabled")
			}
			if opts.dryRun {
				cmd.Println("Dry run mode: enabled")
			}
			cmd.Println("")
			cmd.Println("Use --help to see available commands and options")
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "perform a dry run without renaming anything")

	rootCmd.AddCommand(newRenameCmd(opts))
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))

	return rootCmd
}
