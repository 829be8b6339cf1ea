package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/livecode/livecode/bundle"
)

func newBundleCmd(a *app) *cobra.Command {
	var src, out string

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Read the source directory and write the snapshot and patch artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if src == "" {
				src = a.cfg.LiveCode.SourceDir
			}
			compactPath := a.cfg.SnapshotPath()
			if cmd.Flags().Changed("src") {
				compactPath = filepath.Join(filepath.Dir(filepath.Clean(src)), a.cfg.LiveCode.SnapshotFile)
			}
			if out != "" {
				var err error
				if compactPath, err = bundle.ResolveOutPath(out); err != nil {
					return err
				}
			}
			incPath := filepath.Join(filepath.Dir(compactPath), a.cfg.LiveCode.PatchFile)

			b := bundle.New(a.logger)
			s, err := b.ReadSourceDir(cmd.Context(), src)
			if err != nil {
				return err
			}
			outcome, err := b.Materialize(cmd.Context(), s, compactPath, incPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case outcome.Full:
				fmt.Fprintf(w, "Wrote %s\n", compactPath)
			case !outcome.Written:
				fmt.Fprintln(w, "No changes")
			default:
				for _, line := range outcome.ChangeSet.Summary() {
					fmt.Fprintln(w, line)
				}
				fmt.Fprintf(w, "Wrote %s and %s\n", incPath, compactPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&src, "src", "", "source directory (default livecode.sourceDir)")
	cmd.Flags().StringVar(&out, "out", "", "snapshot file (*.cirru) or directory for compact.cirru")
	return cmd
}
