package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LoadSnapshotFile reads a materialized snapshot.
func LoadSnapshotFile(ctx context.Context, path string) (*Snapshot, error) {
	text, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := UnmarshalSnapshot(text)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return s, nil
}

// WriteSnapshotFile overwrites path with s.
func WriteSnapshotFile(ctx context.Context, path string, s *Snapshot) error {
	return writeFile(ctx, path, MarshalSnapshot(s))
}

// LoadChangeSetFile reads a patch artifact. A blank file is an empty
// change-set; a missing one is reported as an fs.ErrNotExist error.
func LoadChangeSetFile(ctx context.Context, path string) (*ChangeSet, error) {
	text, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	cs, err := UnmarshalChangeSet(text)
	if err != nil {
		return nil, fmt.Errorf("failed to decode change-set %s: %w", path, err)
	}
	return cs, nil
}

// WriteChangeSetFile overwrites path with cs.
func WriteChangeSetFile(ctx context.Context, path string, cs *ChangeSet) error {
	return writeFile(ctx, path, MarshalChangeSet(cs))
}

func readFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// writeFile writes through a temp file and rename so a watcher never sees a
// half-written artifact.
func writeFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
