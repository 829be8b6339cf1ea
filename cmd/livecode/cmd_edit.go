package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/editor"
	"github.com/ZanzyTHEbar/livecode/livecode/patch"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// editResponse is written to stdout for every edit request.
type editResponse struct {
	OK      bool     `json:"ok"`
	ID      string   `json:"id,omitempty"`
	Summary []string `json:"summary,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
}

func newEditCmd(a *app) *cobra.Command {
	var snapshotPath, patchPath, requestPath string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply a JSON structural-edit request to one definition of the snapshot",
		Long: `edit reads a request such as

  {"namespace": "app.main", "definition": "main!", "coordinate": [2, 1],
   "mode": "replace", "new_content": "42", "expected_content": "1"}

applies it to the materialized snapshot, writes the single-definition
change-set as the patch artifact and updates the snapshot. The outcome is
printed as JSON; failures carry the error kind.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshotPath == "" {
				snapshotPath = a.cfg.SnapshotPath()
			}
			if patchPath == "" {
				patchPath = a.cfg.PatchPath()
			}

			id, summary, err := a.runEdit(cmd, snapshotPath, patchPath, requestPath)
			resp := editResponse{OK: err == nil, ID: id, Summary: summary}
			if err != nil {
				resp.Error = common.Kind(err)
				resp.Message = err.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(resp); encErr != nil {
				return encErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "materialized snapshot (default from config)")
	cmd.Flags().StringVar(&patchPath, "patch", "", "patch artifact to write (default from config)")
	cmd.Flags().StringVar(&requestPath, "request", "-", "request file, - for stdin")
	return cmd
}

func (a *app) runEdit(cmd *cobra.Command, snapshotPath, patchPath, requestPath string) (string, []string, error) {
	ctx := cmd.Context()

	data, err := readRequest(cmd, requestPath)
	if err != nil {
		return "", nil, err
	}
	req, err := editor.ParseRequest(data)
	if err != nil {
		return "", nil, err
	}

	s, err := snapshot.LoadSnapshotFile(ctx, snapshotPath)
	if err != nil {
		return "", nil, err
	}
	pipeline := patch.New(a.logger)
	if _, err := pipeline.Load(ctx, s); err != nil {
		return "", nil, err
	}
	res, err := pipeline.ApplyEdit(ctx, req)
	if err != nil {
		return "", nil, err
	}

	updated, err := res.ChangeSet.ApplyTo(s)
	if err != nil {
		return "", nil, err
	}
	if err := snapshot.WriteChangeSetFile(ctx, patchPath, res.ChangeSet); err != nil {
		return "", nil, err
	}
	if err := snapshot.WriteSnapshotFile(ctx, snapshotPath, updated); err != nil {
		return "", nil, err
	}
	return res.ID.String(), res.Summary, nil
}

func readRequest(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return data, nil
}
