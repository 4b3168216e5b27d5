package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/feed"
	"github.com/gtfsrt-io/rtfetch/internal/fetcher"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
	"github.com/gtfsrt-io/rtfetch/internal/transport"
)

const baseURL = "http://parquet.example.org"

type stubTransport struct {
	payloads map[string][]byte
}

func (s *stubTransport) Fetch(_ context.Context, url string, dst io.Writer) (int64, error) {
	payload, ok := s.payloads[url]
	if !ok {
		return 0, fmt.Errorf("fetch %s: 404 Not Found: %w", url, transport.ErrNotFound)
	}
	n, err := dst.Write(payload)
	return int64(n), err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func targetsForDays(t *testing.T, days ...string) []planner.Target {
	t.Helper()
	var out []planner.Target
	for _, day := range days {
		d, err := dates.ParseDay(day)
		require.NoError(t, err)
		out = append(out, planner.Target{
			Type:     feed.TypeVehiclePositions,
			Token:    "dnA",
			Day:      d,
			DestRoot: "data",
		})
	}
	return out
}

func TestRunEmptyBatch(t *testing.T) {
	exec := fetcher.New(afero.NewMemMapFs(), &stubTransport{}, baseURL, quietLogger())
	o := New(exec, quietLogger(), nil)

	summary, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalDownloaded())
	assert.Zero(t, summary.TotalSkipped())
	assert.Empty(t, summary.Failures)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", summary.RunID.String())
}

func TestRunMixedOutcomes(t *testing.T) {
	targets := targetsForDays(t,
		"2026-01-01", "2026-01-02", // pre-existing -> skipped
		"2026-01-03", "2026-01-04", // served -> downloaded
		"2026-01-05", // missing at origin -> failed
	)

	fs := afero.NewMemMapFs()
	for _, target := range targets[:2] {
		require.NoError(t, afero.WriteFile(fs, target.LocalPath(), []byte("cached"), 0o644))
	}
	tr := &stubTransport{payloads: map[string][]byte{
		targets[2].RemoteURL(baseURL): []byte("day three"),
		targets[3].RemoteURL(baseURL): []byte("day four!"),
	}}

	o := New(fetcher.New(fs, tr, baseURL, quietLogger()), quietLogger(), nil)
	summary, err := o.Run(context.Background(), targets)
	require.NoError(t, err, "per-target failures never abort the batch")

	assert.Equal(t, 2, summary.TotalDownloaded())
	assert.Equal(t, 2, summary.TotalSkipped())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, fetcher.FailureRemoteNotFound, summary.Failures[0].Kind)
	assert.Equal(t, int64(len("day three")+len("day four!")), summary.BytesDownloaded)

	// The failed day left nothing on disk.
	exists, err := afero.Exists(fs, targets[4].LocalPath())
	require.NoError(t, err)
	assert.False(t, exists)

	counts := summary.Counts[targets[0].FeedKey()]
	require.NotNil(t, counts)
	assert.Equal(t, 2, counts.Downloaded)
	assert.Equal(t, 2, counts.Skipped)
	assert.Equal(t, 1, counts.Failed)
}

func TestRunIdempotentSecondPass(t *testing.T) {
	targets := targetsForDays(t, "2026-01-01", "2026-01-02", "2026-01-03")
	payloads := make(map[string][]byte)
	for _, target := range targets {
		payloads[target.RemoteURL(baseURL)] = []byte(target.Day.Format(dates.Layout))
	}
	fs := afero.NewMemMapFs()
	o := New(fetcher.New(fs, &stubTransport{payloads: payloads}, baseURL, quietLogger()), quietLogger(), nil)

	first, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalDownloaded())

	second, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Zero(t, second.TotalDownloaded())
	assert.Equal(t, 3, second.TotalSkipped())
	assert.Zero(t, second.BytesDownloaded)
}

type recordingObserver struct {
	started  int
	finished []fetcher.Status
}

func (r *recordingObserver) TargetStarted(_, _ int, _ planner.Target) { r.started++ }
func (r *recordingObserver) TargetFinished(_, _ int, oc fetcher.Outcome) {
	r.finished = append(r.finished, oc.Status)
}

func TestRunNotifiesObserverInOrder(t *testing.T) {
	targets := targetsForDays(t, "2026-01-01", "2026-01-02")
	payloads := map[string][]byte{
		targets[0].RemoteURL(baseURL): []byte("x"),
	}
	obs := &recordingObserver{}
	o := New(fetcher.New(afero.NewMemMapFs(), &stubTransport{payloads: payloads}, baseURL, quietLogger()), quietLogger(), obs)

	_, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 2, obs.started)
	assert.Equal(t, []fetcher.Status{fetcher.StatusDownloaded, fetcher.StatusFailed}, obs.finished)
}

func TestRunCancelled(t *testing.T) {
	targets := targetsForDays(t, "2026-01-01", "2026-01-02")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(fetcher.New(afero.NewMemMapFs(), &stubTransport{}, baseURL, quietLogger()), quietLogger(), nil)
	summary, err := o.Run(ctx, targets)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.TotalDownloaded())
	assert.WithinDuration(t, time.Now(), summary.Finished, time.Minute)
}
