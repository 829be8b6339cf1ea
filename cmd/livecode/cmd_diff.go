package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/livecode/livecode/diff"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

func newDiffCmd(a *app) *cobra.Command {
	var asChangeSet bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Print the changes between two snapshot files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			old, err := snapshot.LoadSnapshotFile(ctx, args[0])
			if err != nil {
				return err
			}
			next, err := snapshot.LoadSnapshotFile(ctx, args[1])
			if err != nil {
				return err
			}
			cs, err := diff.Diff(old, next)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asChangeSet {
				_, err := fmt.Fprint(w, snapshot.MarshalChangeSet(cs))
				return err
			}
			if cs.IsEmpty() {
				fmt.Fprintln(w, "No changes")
				return nil
			}
			for _, line := range cs.Summary() {
				fmt.Fprintln(w, line)
			}
			a.logger.Debug().Strs("touched", cs.Touched()).Msg("Diff computed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&asChangeSet, "changeset", false, "print the change-set instead of a summary")
	return cmd
}
