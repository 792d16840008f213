// Package quarantine moves rejected source files out of the dataset tree.
//
// Moves never overwrite: a file already present at the destination fails that
// item with a *CollisionError and leaves both files untouched. Successful moves
// are recorded in an optional sqlite ledger so an interrupted run can be
// inspected and cleaned up afterwards.
package quarantine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/model-collapse/maskcoco/internal/logging"
)

// CollisionError reports a destination that already exists.
type CollisionError struct {
	Source string
	Dest   string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("quarantine: %s already exists (moving %s)", e.Dest, e.Source)
}

// Handler moves files into Dir.
type Handler struct {
	Dir    string
	Ledger *Ledger
	Logger *slog.Logger
	RunID  string
}

// Ensure creates Dir if it does not exist yet.
func (h *Handler) Ensure() error {
	if h.Dir == "" {
		return errors.New("quarantine: directory not set")
	}
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}
	return nil
}

// Quarantine moves every path into Dir and returns one error per failed item.
// A failing item does not stop the remaining ones.
func (h *Handler) Quarantine(ctx context.Context, reason string, paths ...string) []error {
	if len(paths) == 0 {
		return nil
	}
	logger := h.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := h.Ensure(); err != nil {
		return []error{err}
	}

	var errs []error
	for _, src := range paths {
		dst := filepath.Join(h.Dir, filepath.Base(src))
		if err := move(src, dst); err != nil {
			logger.Error("quarantine move failed", "source", src, "dest", dst, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("quarantined", "source", src, "reason", reason)
		if h.Ledger == nil {
			continue
		}
		entry := Entry{RunID: h.RunID, Source: src, Dest: dst, Reason: reason, MovedAt: time.Now().UTC()}
		if err := h.Ledger.Record(ctx, entry); err != nil {
			logger.Warn("ledger record failed", "source", src, "error", err)
		}
	}
	return errs
}

// linkMove emulates a no-replace rename with a hard link followed by removal
// of the source.
func linkMove(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return &CollisionError{Source: src, Dest: dst}
		}
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && isCrossDevice(linkErr.Err) {
			return copyMove(src, dst)
		}
		return fmt.Errorf("link %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}

// copyMove copies src to a newly created dst and removes src.
func copyMove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &CollisionError{Source: src, Dest: dst}
		}
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}
