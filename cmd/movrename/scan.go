package main

import (
	"github.com/spf13/cobra"

	"github.com/quidome/movrename-go/pkg/scan"
)

func newScanCmd(opts *options) *cobra.Command {
	var (
		extensions string
		maxDepth   int
	)

	scanCmd := &cobra.Command{
		Use:   "scan [files or directories...]",
		Short: "List the files a rename run would consider",
		Long:  "Expand the given files, directories and glob patterns and print every matching file, without touching any of them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := scan.Collect(args, scan.Options{
				Extensions: extensions,
				MaxDepth:   maxDepth,
			})
			if err != nil {
				return err
			}

			for _, file := range files {
				cmd.Println(file)
			}

			if opts.verbose {
				cmd.PrintErrf("found %d matching files\n", len(files))
			}

			return nil
		},
	}

	scanCmd.Flags().StringVarP(&extensions, "extension", "e", scan.DefaultExtensions, "extensions to match, as an alternation like \"mov|mp4\"")
	scanCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum directory recursion depth (-1 = unlimited)")

	return scanCmd
}
