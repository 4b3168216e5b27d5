// Package fetcher realizes single download targets against the local
// cache, idempotently: a partition path exists only if the fetch for it
// fully succeeded.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
	"github.com/gtfsrt-io/rtfetch/internal/transport"
)

// Transport writes the remote object at url into dst, classifying
// absent/denied objects with transport.ErrNotFound.
type Transport interface {
	Fetch(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// Status tags the result of one target.
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// FailureKind classifies a failed target.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureRemoteNotFound
	FailureTransport
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureRemoteNotFound:
		return "remote-not-found"
	case FailureTransport:
		return "transport-error"
	}
	return fmt.Sprintf("failure(%d)", int(k))
}

// Outcome is the per-target result. Bytes is the on-disk size for
// downloaded targets; Err is set only when Status is StatusFailed.
type Outcome struct {
	Target  planner.Target
	Status  Status
	Bytes   int64
	Failure FailureKind
	Err     error
}

// Fetcher performs the idempotent fetch-or-skip operation for one
// target at a time. No retries: re-running the whole batch is the
// retry mechanism.
type Fetcher struct {
	fs        afero.Fs
	transport Transport
	baseURL   string
	logger    *slog.Logger
}

// New builds a Fetcher writing under fs and reading from baseURL.
func New(fs afero.Fs, tr Transport, baseURL string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{fs: fs, transport: tr, baseURL: baseURL, logger: logger}
}

// Fetch materializes one target. Presence of the destination path is
// the only skip signal; a failed transfer leaves no file behind.
func (f *Fetcher) Fetch(ctx context.Context, target planner.Target) Outcome {
	l := f.logger.With(
		slog.String("feed", target.FeedKey()),
		slog.String("date", target.Day.Format(dates.Layout)),
	)
	dstPath := target.LocalPath()

	exists, err := afero.Exists(f.fs, dstPath)
	if err != nil {
		return f.fail(l, target, FailureTransport, fmt.Errorf("stat %s: %w", dstPath, err))
	}
	if exists {
		l.Debug("Skipping, already present.", slog.String("path", dstPath))
		return Outcome{Target: target, Status: StatusSkipped}
	}

	if err := f.fs.MkdirAll(target.LocalDir(), 0o755); err != nil {
		return f.fail(l, target, FailureTransport, fmt.Errorf("mkdir %s: %w", target.LocalDir(), err))
	}

	dst, err := f.fs.Create(dstPath)
	if err != nil {
		return f.fail(l, target, FailureTransport, fmt.Errorf("create %s: %w", dstPath, err))
	}

	srcURL := target.RemoteURL(f.baseURL)
	_, fetchErr := f.transport.Fetch(ctx, srcURL, dst)
	closeErr := dst.Close()
	if fetchErr == nil && closeErr != nil {
		fetchErr = fmt.Errorf("close %s: %w", dstPath, closeErr)
	}
	if fetchErr != nil {
		// A partial file must not survive: the path exists only if the
		// fetch fully succeeded.
		if rmErr := f.fs.Remove(dstPath); rmErr != nil {
			l.Error("Failed to remove partial file.", slog.String("path", dstPath), "error", rmErr)
		}
		kind := FailureTransport
		if errors.Is(fetchErr, transport.ErrNotFound) {
			kind = FailureRemoteNotFound
		}
		return f.fail(l, target, kind, fmt.Errorf("fetch %s: %w", srcURL, fetchErr))
	}

	info, err := f.fs.Stat(dstPath)
	if err != nil {
		if rmErr := f.fs.Remove(dstPath); rmErr != nil {
			l.Error("Failed to remove unreadable file.", slog.String("path", dstPath), "error", rmErr)
		}
		return f.fail(l, target, FailureTransport, fmt.Errorf("stat downloaded %s: %w", dstPath, err))
	}

	l.Info("Downloaded.", slog.String("path", dstPath), slog.Int64("bytes", info.Size()))
	return Outcome{Target: target, Status: StatusDownloaded, Bytes: info.Size()}
}

func (f *Fetcher) fail(l *slog.Logger, target planner.Target, kind FailureKind, err error) Outcome {
	if kind == FailureRemoteNotFound {
		l.Warn("Remote object absent.", "error", err)
	} else {
		l.Error("Download failed.", "error", err)
	}
	return Outcome{Target: target, Status: StatusFailed, Failure: kind, Err: err}
}
