// Package apply accepts or refuses remediated file content and writes
// accepted content in place.
package apply

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Rejection reasons.
const (
	ReasonEmpty     = "empty"
	ReasonUnchanged = "unchanged"
)

// Rejected is returned when a candidate artifact fails the acceptance
// policy. Nothing is written.
type Rejected struct {
	Path   string
	Reason string
}

func (r *Rejected) Error() string {
	return fmt.Sprintf("rejected fix for %s: %s", r.Path, r.Reason)
}

// Result describes an accepted artifact.
type Result struct {
	Path         string
	Written      bool
	BytesBefore  int
	BytesAfter   int
	SHA256Before string
	SHA256After  string
}

// Applier replaces a file's content with a remediated artifact.
type Applier struct {
	// DryRun runs every check but never touches the file.
	DryRun bool
}

// Apply writes artifact over path if it is non-empty and differs from
// original. A *Rejected error means the artifact was refused; any other
// error is an I/O failure and the file is left as it was.
func (a *Applier) Apply(path, original, artifact string) (Result, error) {
	if strings.TrimSpace(artifact) == "" {
		slog.Warn("Refusing empty fix", "path", path)
		return Result{Path: path}, &Rejected{Path: path, Reason: ReasonEmpty}
	}
	if artifact == original {
		slog.Warn("Fix is identical to the original; nothing to write", "path", path)
		return Result{Path: path}, &Rejected{Path: path, Reason: ReasonUnchanged}
	}

	res := Result{
		Path:         path,
		BytesBefore:  len(original),
		BytesAfter:   len(artifact),
		SHA256Before: digest(original),
		SHA256After:  digest(artifact),
	}

	if a.DryRun {
		slog.Info("Dry run: would write fix",
			"path", path,
			"bytes_before", res.BytesBefore,
			"bytes_after", res.BytesAfter,
		)
		return res, nil
	}

	if err := writeAtomic(path, []byte(artifact)); err != nil {
		return res, err
	}
	res.Written = true
	slog.Info("Applied fix",
		"path", path,
		"bytes_before", res.BytesBefore,
		"bytes_after", res.BytesAfter,
		"sha256_before", res.SHA256Before,
		"sha256_after", res.SHA256After,
	)
	return res, nil
}

// writeAtomic replaces path with data through a temp file in the same
// directory, keeping the original permission bits. A symlink is followed so
// the link survives and its target receives the new content.
func writeAtomic(path string, data []byte) error {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".autofix-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s for %s: %w", step, path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("writing temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fail("setting mode", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
