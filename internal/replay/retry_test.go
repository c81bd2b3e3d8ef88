package replay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/backfill/internal/journal"
	"github.com/jfmyers9/backfill/internal/scrobbler"
	"github.com/jfmyers9/backfill/pkg/lastfm"
	"github.com/rs/zerolog"
)

// fakeBatchSubmitter accepts every scrobble except tracks listed in ignored
type fakeBatchSubmitter struct {
	batches [][]scrobbler.Scrobble
	ignored map[string]string
	err     error
}

func (f *fakeBatchSubmitter) ScrobbleBatch(ctx context.Context, scrobbles []scrobbler.Scrobble) ([]scrobbler.Result, error) {
	f.batches = append(f.batches, scrobbles)
	if f.err != nil {
		return nil, f.err
	}

	results := make([]scrobbler.Result, len(scrobbles))
	for i, s := range scrobbles {
		reason, ignored := f.ignored[s.Track]
		results[i] = scrobbler.Result{Accepted: !ignored, Reason: reason}
	}
	return results, nil
}

func openTestJournal(t *testing.T) *journal.Journal {
	t.Helper()

	j, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func seedFailures(t *testing.T, j *journal.Journal, n int, start time.Time) {
	t.Helper()

	for i := 0; i < n; i++ {
		entry := journal.Entry{
			Index:     i,
			Artist:    "Artist",
			Track:     fmt.Sprintf("Track %d", i),
			Album:     "Album",
			Timestamp: start.Add(time.Duration(i) * time.Second),
		}
		err := j.Record(context.Background(), entry, errors.New("network error"))
		if err != nil {
			t.Fatalf("failed to seed failure: %v", err)
		}
	}
}

func TestRetryFailed(t *testing.T) {
	j := openTestJournal(t)
	now := fixedNow
	seedFailures(t, j, 120, now.Add(-2*time.Hour))

	submitter := &fakeBatchSubmitter{}
	var sleeps int

	summary, err := RetryFailed(context.Background(), j, submitter, RetryOptions{
		Pacer:  func(time.Duration) { sleeps++ },
		Clock:  func() time.Time { return now },
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}

	if summary.Resubmitted != 120 || summary.Failed != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	sizes := make([]int, len(submitter.batches))
	for i, b := range submitter.batches {
		sizes[i] = len(b)
	}
	if len(sizes) != 3 || sizes[0] != 50 || sizes[1] != 50 || sizes[2] != 20 {
		t.Errorf("expected batches of 50, 50, 20, got %v", sizes)
	}
	if sleeps != 3 {
		t.Errorf("expected 3 pauses, got %d", sleeps)
	}

	// Original timestamps are kept, oldest first
	first := submitter.batches[0][0]
	if first.Track != "Track 0" || first.Album != "Album" || !first.Timestamp.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("unexpected first scrobble %+v", first)
	}

	remaining, err := j.Failed(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed to list failures: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no remaining failures, got %d", len(remaining))
	}
}

func TestRetryFailedStopsOnError(t *testing.T) {
	j := openTestJournal(t)
	seedFailures(t, j, 60, fixedNow.Add(-time.Hour))

	submitter := &fakeBatchSubmitter{err: errors.New("service offline")}

	summary, err := RetryFailed(context.Background(), j, submitter, RetryOptions{
		Pacer:  func(time.Duration) {},
		Clock:  func() time.Time { return fixedNow },
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}

	if len(submitter.batches) != 1 {
		t.Errorf("expected a single attempt, got %d", len(submitter.batches))
	}
	if summary.Failed != 50 || summary.Resubmitted != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	failed, err := j.Failed(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed to list failures: %v", err)
	}
	if len(failed) != 60 {
		t.Fatalf("expected 60 failures to remain, got %d", len(failed))
	}
	if failed[0].Error != "service offline" {
		t.Errorf("expected the new error to be recorded, got %q", failed[0].Error)
	}
	if failed[59].Error != "network error" {
		t.Errorf("entries outside the batch must be untouched, got %q", failed[59].Error)
	}
}

func TestRetryFailedPurgesExpired(t *testing.T) {
	j := openTestJournal(t)
	seedFailures(t, j, 3, fixedNow.Add(-20*24*time.Hour))
	seedFailures(t, j, 2, fixedNow.Add(-time.Hour))

	submitter := &fakeBatchSubmitter{}

	summary, err := RetryFailed(context.Background(), j, submitter, RetryOptions{
		Pacer:  func(time.Duration) {},
		Clock:  func() time.Time { return fixedNow },
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}

	if summary.Expired != 3 || summary.Resubmitted != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestRetryFailedPrunesOldSubmissions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	old := journal.Entry{Index: 0, Artist: "Old", Track: "Accepted", Timestamp: fixedNow.Add(-40 * 24 * time.Hour)}
	if err := j.Record(ctx, old, nil); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	recent := journal.Entry{Index: 1, Artist: "New", Track: "Accepted", Timestamp: fixedNow.Add(-time.Hour)}
	if err := j.Record(ctx, recent, nil); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	summary, err := RetryFailed(ctx, j, &fakeBatchSubmitter{}, RetryOptions{
		Pacer:  func(time.Duration) {},
		Clock:  func() time.Time { return fixedNow },
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if summary.Pruned != 1 {
		t.Errorf("expected 1 pruned entry, got %d", summary.Pruned)
	}

	all, err := j.All(ctx)
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(all) != 1 || all[0].Artist != "New" {
		t.Errorf("expected only the recent entry to remain, got %+v", all)
	}
}

func TestRetryFailedPartlyIgnoredBatch(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	seedFailures(t, j, 3, fixedNow.Add(-time.Hour))

	submitter := &fakeBatchSubmitter{ignored: map[string]string{"Track 0": "Artist name ignored"}}
	opts := RetryOptions{
		Pacer:  func(time.Duration) {},
		Clock:  func() time.Time { return fixedNow },
		Logger: zerolog.Nop(),
	}

	summary, err := RetryFailed(ctx, j, submitter, opts)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if summary.Resubmitted != 2 || summary.Rejected != 1 || summary.Failed != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	// Nothing is left to send, so a second retry makes no request
	summary, err = RetryFailed(ctx, j, submitter, opts)
	if err != nil {
		t.Fatalf("second RetryFailed failed: %v", err)
	}
	if len(submitter.batches) != 1 {
		t.Errorf("expected a single request across both retries, got %d", len(submitter.batches))
	}
	if summary.Resubmitted != 0 || summary.Rejected != 0 {
		t.Errorf("unexpected second summary %+v", summary)
	}

	all, err := j.All(ctx)
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	for _, e := range all {
		switch e.Track {
		case "Track 0":
			if !e.Rejected || e.Submitted || e.Error != "Artist name ignored" {
				t.Errorf("expected the ignored entry to be rejected, got %+v", e)
			}
		default:
			if !e.Submitted || e.Rejected {
				t.Errorf("expected %s to be submitted, got %+v", e.Track, e)
			}
		}
	}
}

func TestRetryFailedWithLastFMClient(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	seedFailures(t, j, 2, fixedNow.Add(-time.Hour))

	sent := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		for i := 0; r.FormValue(fmt.Sprintf("track[%d]", i)) != ""; i++ {
			sent[r.FormValue(fmt.Sprintf("track[%d]", i))]++
		}
		body := `<lfm status="ok"><scrobbles accepted="1" ignored="1">` +
			`<scrobble><track>Track 0</track><ignoredMessage code="0"></ignoredMessage></scrobble>` +
			`<scrobble><track>Track 1</track><ignoredMessage code="3">Timestamp too old</ignoredMessage></scrobble>` +
			`</scrobbles></lfm>`
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := scrobbler.NewFromConfig(lastfm.Config{
		APIKey:     "key",
		APISecret:  "secret",
		SessionKey: "session",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	opts := RetryOptions{
		Pacer:  func(time.Duration) {},
		Clock:  func() time.Time { return fixedNow },
		Logger: zerolog.Nop(),
	}
	for i := 0; i < 3; i++ {
		if _, err := RetryFailed(ctx, j, client, opts); err != nil {
			t.Fatalf("RetryFailed run %d failed: %v", i, err)
		}
	}

	if sent["Track 0"] != 1 || sent["Track 1"] != 1 {
		t.Errorf("expected each track to be sent once, got %v", sent)
	}

	pending, err := j.Count(ctx, false)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected no pending entries, got %d", pending)
	}

	failed, err := j.Failed(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list failures: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("expected nothing left to retry, got %+v", failed)
	}

	all, err := j.All(ctx)
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	for _, e := range all {
		if e.Track == "Track 1" && !strings.Contains(e.Error, "Timestamp too old") {
			t.Errorf("expected the ignore reason to be kept, got %q", e.Error)
		}
	}
}

func TestRetryFailedNothingToDo(t *testing.T) {
	j := openTestJournal(t)
	submitter := &fakeBatchSubmitter{}

	summary, err := RetryFailed(context.Background(), j, submitter, RetryOptions{
		Pacer:  func(time.Duration) { t.Error("unexpected pause") },
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if summary != (RetrySummary{}) || len(submitter.batches) != 0 {
		t.Errorf("expected nothing to happen, got %+v", summary)
	}
}
