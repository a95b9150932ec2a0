package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	attestationRepository "github.com/allisson/trustcore/internal/attestation/repository"
	attestationService "github.com/allisson/trustcore/internal/attestation/service"
	apperrors "github.com/allisson/trustcore/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memRepo struct {
	mu    sync.Mutex
	roots map[string]*attestationDomain.DailyMerkleRoot
	err   error
	saves int
}

func newMemRepo() *memRepo {
	return &memRepo{roots: make(map[string]*attestationDomain.DailyMerkleRoot)}
}

func (r *memRepo) Save(ctx context.Context, root *attestationDomain.DailyMerkleRoot, overwrite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.err != nil {
		return r.err
	}
	if _, ok := r.roots[root.Key()]; ok && !overwrite {
		return attestationDomain.ErrRootExists
	}
	cp := *root
	r.roots[root.Key()] = &cp
	return nil
}

func (r *memRepo) Get(ctx context.Context, date string, segment int) (*attestationDomain.DailyMerkleRoot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := (&attestationDomain.DailyMerkleRoot{Date: date, Segment: segment}).Key()
	root, ok := r.roots[key]
	if !ok {
		return nil, attestationDomain.ErrRootNotFound
	}
	return root, nil
}

func (r *memRepo) List(ctx context.Context, offset, limit int) ([]*attestationDomain.DailyMerkleRoot, error) {
	return nil, nil
}

func (r *memRepo) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var day1 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestLog(t *testing.T, repo RootRepository) (*attestationLog, *fakeClock, *attestationService.RootSigner) {
	t.Helper()
	signer, err := attestationService.NewRootSigner(bytes.Repeat([]byte{3}, 32), "attest-test")
	require.NoError(t, err)

	clock := &fakeClock{t: day1}
	l := NewAttestationLog(repo, signer, Options{BuildHash: "build-1", ImageDigest: "sha256:img"}, nil, nil).(*attestationLog)
	l.now = clock.Now
	return l, clock, signer
}

func event(actor string, i int, ts time.Time) attestationDomain.Event {
	return attestationDomain.Event{
		ActionHash: attestationDomain.HashAction("secret_read", []byte{byte(i)}),
		Timestamp:  ts,
		Actor:      actor,
	}
}

func TestAttestationLog_AppendAndDailyRoot(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, _, signer := newTestLog(t, repo)

	var events []attestationDomain.Event
	for i := range 3 {
		e := event("svc", i, day1.Add(time.Duration(i)*time.Second))
		require.NoError(t, l.AppendEvent(ctx, e))
		events = append(events, e)
	}

	root, err := l.DailyMerkleRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01", root.Date)
	assert.Equal(t, 3, root.EventCount)
	assert.Equal(t, attestationService.RootOf(events), root.Root)
	assert.Equal(t, "build-1", root.BuildHash)
	assert.Equal(t, "sha256:img", root.ImageDigest)
	assert.True(t, signer.Verify(root))
	assert.Zero(t, repo.saves, "DailyMerkleRoot must not persist")

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	for _, e := range snap {
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", e.ID.String())
	}
}

func TestAttestationLog_AppendEventValidation(t *testing.T) {
	l, _, _ := newTestLog(t, newMemRepo())

	err := l.AppendEvent(context.Background(), attestationDomain.Event{Actor: "svc"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, l.Snapshot())
}

func TestAttestationLog_EventsAreCopied(t *testing.T) {
	l, _, _ := newTestLog(t, newMemRepo())

	md := map[string]string{"k": "v"}
	e := event("svc", 1, day1)
	e.Metadata = md
	require.NoError(t, l.AppendEvent(context.Background(), e))

	md["k"] = "changed"
	snap := l.Snapshot()
	snap[0].Actor = "mallory"

	again := l.Snapshot()
	assert.Equal(t, "v", again[0].Metadata["k"])
	assert.Equal(t, "svc", again[0].Actor)
}

func TestAttestationLog_LazyRollover(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, clock, signer := newTestLog(t, repo)

	var dayEvents []attestationDomain.Event
	for i := range 3 {
		e := event("svc", i, day1)
		require.NoError(t, l.AppendEvent(ctx, e))
		dayEvents = append(dayEvents, l.Snapshot()[i])
	}

	clock.Set(day1.Add(20 * time.Hour))
	require.NoError(t, l.AppendEvent(ctx, event("svc", 9, clock.Now())))

	stored, err := repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.EventCount)
	assert.True(t, signer.Verify(stored))

	ok, err := l.VerifyMerkleRoot(ctx, stored, dayEvents)
	require.NoError(t, err)
	assert.True(t, ok)

	snap := l.Snapshot()
	require.Len(t, snap, 1)

	root, err := l.DailyMerkleRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-02", root.Date)
	assert.Equal(t, 1, root.EventCount)
}

func TestAttestationLog_RolloverOnDailyMerkleRoot(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, clock, _ := newTestLog(t, repo)

	require.NoError(t, l.AppendEvent(ctx, event("svc", 1, day1)))
	clock.Set(day1.Add(48 * time.Hour))

	root, err := l.DailyMerkleRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-03", root.Date)
	assert.Equal(t, 0, root.EventCount)

	_, err = repo.Get(ctx, "2026-05-01", 0)
	assert.NoError(t, err)
}

func TestAttestationLog_StorageFailureIsNotReturned(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, clock, _ := newTestLog(t, repo)

	require.NoError(t, l.AppendEvent(ctx, event("svc", 1, day1)))

	repo.setErr(errors.New("disk full"))
	clock.Set(day1.Add(24 * time.Hour))
	assert.NoError(t, l.AppendEvent(ctx, event("svc", 2, clock.Now())))

	_, err := repo.Get(ctx, "2026-05-01", 0)
	assert.ErrorIs(t, err, attestationDomain.ErrRootNotFound)
	assert.Len(t, l.pending, 1)

	repo.setErr(nil)
	l.tick(ctx)

	stored, err := repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EventCount)
	assert.Empty(t, l.pending)
}

func TestAttestationLog_Flush(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, clock, _ := newTestLog(t, repo)

	require.NoError(t, l.AppendEvent(ctx, event("svc", 1, day1)))
	first, err := l.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EventCount)

	require.NoError(t, l.AppendEvent(ctx, event("svc", 2, day1)))
	second, err := l.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.EventCount)
	assert.Len(t, l.Snapshot(), 2, "checkpoints keep the buffer")

	clock.Set(day1.Add(24 * time.Hour))
	_, err = l.DailyMerkleRoot(ctx)
	require.NoError(t, err)

	stored, err := repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.EventCount)

	repo.setErr(errors.New("db down"))
	_, err = l.Flush(ctx)
	assert.ErrorContains(t, err, "failed to persist merkle root checkpoint")
}

func TestAttestationLog_RetryAfterCheckpointOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, clock, signer := newTestLog(t, repo)

	for i := range 3 {
		require.NoError(t, l.AppendEvent(ctx, event("svc", i, day1)))
	}
	_, err := l.Flush(ctx)
	require.NoError(t, err)

	for i := 3; i < 5; i++ {
		require.NoError(t, l.AppendEvent(ctx, event("svc", i, day1)))
	}

	repo.setErr(errors.New("db down"))
	clock.Set(day1.Add(24 * time.Hour))
	require.NoError(t, l.AppendEvent(ctx, event("svc", 9, clock.Now())))
	require.Len(t, l.pending, 1)
	assert.True(t, l.pending[0].overwrite)

	repo.setErr(nil)
	l.tick(ctx)

	stored, err := repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.EventCount, "the sealed root replaces the checkpoint")
	assert.True(t, signer.Verify(stored))
	assert.Empty(t, l.pending)

	_, err = repo.Get(ctx, "2026-05-01", 1)
	assert.ErrorIs(t, err, attestationDomain.ErrRootNotFound)
}

func TestAttestationLog_SameDayRestartWritesNewSegment(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	first, _, _ := newTestLog(t, repo)
	for i := range 3 {
		require.NoError(t, first.AppendEvent(ctx, event("svc", i, day1)))
	}
	_, err := first.Flush(ctx)
	require.NoError(t, err)

	restarted, _, signer := newTestLog(t, repo)
	require.NoError(t, restarted.AppendEvent(ctx, event("svc", 7, day1)))
	root, err := restarted.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, root.Segment)
	assert.True(t, signer.Verify(root))

	earlier, err := repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, earlier.EventCount, "the earlier run's root is kept")

	require.NoError(t, restarted.AppendEvent(ctx, event("svc", 8, day1)))
	root, err = restarted.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, root.Segment, "later checkpoints replace only this run's record")

	later, err := repo.Get(ctx, "2026-05-01", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, later.EventCount)
	assert.True(t, signer.Verify(later))

	earlier, err = repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, earlier.EventCount)
	assert.Len(t, repo.roots, 2)
}

func TestAttestationLog_RolloverAfterRestartKeepsEarlierRoot(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	require.NoError(t, repo.Save(ctx, &attestationDomain.DailyMerkleRoot{Date: "2026-05-01", EventCount: 4}, false))

	l, clock, _ := newTestLog(t, repo)
	require.NoError(t, l.AppendEvent(ctx, event("svc", 1, day1)))
	clock.Set(day1.Add(24 * time.Hour))
	require.NoError(t, l.AppendEvent(ctx, event("svc", 2, clock.Now())))

	earlier, err := repo.Get(ctx, "2026-05-01", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, earlier.EventCount)

	sealed, err := repo.Get(ctx, "2026-05-01", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sealed.EventCount)
	assert.Empty(t, l.pending)

	root, err := l.DailyMerkleRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, root.Segment, "a new day starts at segment 0")
}

func TestAttestationLog_VerifyMerkleRoot(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T) (*attestationLog, *attestationDomain.DailyMerkleRoot, []attestationDomain.Event) {
		l, _, _ := newTestLog(t, newMemRepo())
		for i := range 4 {
			require.NoError(t, l.AppendEvent(ctx, event("svc", i, day1.Add(time.Duration(i)*time.Minute))))
		}
		root, err := l.DailyMerkleRoot(ctx)
		require.NoError(t, err)
		return l, root, l.Snapshot()
	}

	t.Run("identical events verify", func(t *testing.T) {
		l, root, events := build(t)
		ok, err := l.VerifyMerkleRoot(ctx, root, events)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, l.Snapshot(), 4)
	})

	mismatches := []struct {
		name   string
		mutate func(root *attestationDomain.DailyMerkleRoot, events []attestationDomain.Event) []attestationDomain.Event
		reason string
	}{
		{
			name: "removed event",
			mutate: func(_ *attestationDomain.DailyMerkleRoot, e []attestationDomain.Event) []attestationDomain.Event {
				return e[:3]
			},
			reason: "root mismatch",
		},
		{
			name: "reordered events",
			mutate: func(_ *attestationDomain.DailyMerkleRoot, e []attestationDomain.Event) []attestationDomain.Event {
				e[0], e[1] = e[1], e[0]
				return e
			},
			reason: "root mismatch",
		},
		{
			name: "altered actor",
			mutate: func(_ *attestationDomain.DailyMerkleRoot, e []attestationDomain.Event) []attestationDomain.Event {
				e[2].Actor = "mallory"
				return e
			},
			reason: "root mismatch",
		},
		{
			name: "wrong count",
			mutate: func(r *attestationDomain.DailyMerkleRoot, e []attestationDomain.Event) []attestationDomain.Event {
				r.EventCount = 5
				return e
			},
			reason: "event count mismatch",
		},
		{
			name: "forged signature",
			mutate: func(r *attestationDomain.DailyMerkleRoot, e []attestationDomain.Event) []attestationDomain.Event {
				r.BuildHash = "other-build"
				return e
			},
			reason: "signature mismatch",
		},
	}

	for _, tt := range mismatches {
		t.Run(tt.name, func(t *testing.T) {
			l, root, events := build(t)
			events = tt.mutate(root, events)

			ok, err := l.VerifyMerkleRoot(ctx, root, events)
			require.NoError(t, err)
			assert.False(t, ok)

			snap := l.Snapshot()
			require.Len(t, snap, 5)
			violation := snap[4]
			assert.Equal(t, SystemActor, violation.Actor)
			assert.Equal(t, attestationDomain.ActionIntegrityViolation, violation.Metadata["action"])
			assert.Equal(t, tt.reason, violation.Metadata["reason"])
		})
	}

	t.Run("nil stored root", func(t *testing.T) {
		l, _, events := build(t)
		_, err := l.VerifyMerkleRoot(ctx, nil, events)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestAttestationLog_RunAndShutdown(t *testing.T) {
	l, _, _ := newTestLog(t, newMemRepo())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.running
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, l.Run(context.Background()), "second Run must be rejected")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
	require.NoError(t, <-errCh)

	err := l.AppendEvent(context.Background(), event("svc", 1, day1))
	assert.ErrorIs(t, err, attestationDomain.ErrLogClosed)
	assert.ErrorIs(t, l.Run(context.Background()), attestationDomain.ErrLogClosed)
	assert.NoError(t, l.Shutdown(ctx))
}

func TestAttestationLog_RunStopsOnContextCancel(t *testing.T) {
	l, _, _ := newTestLog(t, newMemRepo())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()
	require.NoError(t, <-errCh)
}

func TestAttestationLog_FileRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := attestationRepository.NewFileRootRepository(dir)
	require.NoError(t, err)
	l, clock, signer := newTestLog(t, repo)

	require.NoError(t, l.AppendEvent(ctx, event("svc", 1, day1)))
	clock.Set(day1.Add(24 * time.Hour))
	require.NoError(t, l.AppendEvent(ctx, event("svc", 2, clock.Now())))

	path := filepath.Join(dir, "merkle-20260501.json")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stored, err := attestationRepository.ReadRootFile(path)
	require.NoError(t, err)
	assert.True(t, signer.Verify(stored))
}

func TestUntilNextMidnight(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC), time.Minute},
		{time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), 24 * time.Hour},
		{time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC), 12 * time.Hour},
		{time.Date(2026, 5, 1, 22, 0, 0, 0, time.FixedZone("minus3", -3*3600)), 23 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.now.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, untilNextMidnight(tt.now))
		})
	}
}

func TestAttestationLog_GetRoot(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	l, _, _ := newTestLog(t, repo)

	_, err := l.Flush(ctx)
	require.NoError(t, err)

	root, err := l.GetRoot(ctx, "20260501", 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01", root.Date)

	_, err = l.GetRoot(ctx, "2026-05-02", 0)
	assert.ErrorIs(t, err, attestationDomain.ErrRootNotFound)

	_, err = l.GetRoot(ctx, "May 1", 0)
	assert.ErrorIs(t, err, attestationDomain.ErrInvalidDate)

	_, err = l.GetRoot(ctx, "20260501", -1)
	assert.ErrorIs(t, err, attestationDomain.ErrInvalidSegment)
}
