package usecase

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	attestationService "github.com/allisson/trustcore/internal/attestation/service"
	apperrors "github.com/allisson/trustcore/internal/errors"
	"github.com/allisson/trustcore/internal/metrics"
	"github.com/allisson/trustcore/internal/signature"
)

const (
	metricsDomain = "attestation"

	// SystemActor is the actor of events the log records about itself.
	SystemActor = "system:attestation"
)

// Options carries build provenance written into every root.
type Options struct {
	BuildHash   string
	ImageDigest string
}

type attestationLog struct {
	repo    RootRepository
	signer  *attestationService.RootSigner
	opts    Options
	metrics metrics.BusinessMetrics
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	day     string
	events  []attestationDomain.Event
	pending []pendingRoot
	closed  bool
	running bool
	runDone chan struct{}

	// checkpointed is set once Flush has stored a root for the buffered day, under
	// segment. Only that record may be overwritten.
	checkpointed bool
	segment      int

	stop     chan struct{}
	stopOnce sync.Once
}

// pendingRoot is a sealed root whose storage failed. overwrite is set when the record
// it replaces is a checkpoint this log wrote.
type pendingRoot struct {
	root      *attestationDomain.DailyMerkleRoot
	overwrite bool
}

// NewAttestationLog creates an AttestationLog. A nil businessMetrics records nothing.
func NewAttestationLog(
	repo RootRepository,
	signer *attestationService.RootSigner,
	opts Options,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) AttestationLog {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &attestationLog{
		repo:    repo,
		signer:  signer,
		opts:    opts,
		metrics: businessMetrics,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func (l *attestationLog) AppendEvent(ctx context.Context, event attestationDomain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.Must(uuid.NewV7())
	}
	event.Timestamp = event.Timestamp.UTC()
	event.Metadata = maps.Clone(event.Metadata)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return attestationDomain.ErrLogClosed
	}
	l.rolloverLocked(ctx)
	l.events = append(l.events, event)
	l.metrics.RecordOperation(ctx, metricsDomain, "append_event", "success")
	return nil
}

func (l *attestationLog) DailyMerkleRoot(ctx context.Context) (*attestationDomain.DailyMerkleRoot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked(ctx)
	return l.buildRootLocked()
}

func (l *attestationLog) Flush(ctx context.Context) (*attestationDomain.DailyMerkleRoot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked(ctx)
	l.retryPendingLocked(ctx)

	root, err := l.buildRootLocked()
	if err != nil {
		return nil, err
	}
	if err := l.saveLocked(ctx, root, l.checkpointed); err != nil {
		l.metrics.RecordOperation(ctx, metricsDomain, "flush", "error")
		return nil, apperrors.Wrap(err, "failed to persist merkle root checkpoint")
	}
	l.checkpointed = true
	l.segment = root.Segment
	l.metrics.RecordOperation(ctx, metricsDomain, "flush", "success")
	return root, nil
}

func (l *attestationLog) VerifyMerkleRoot(
	ctx context.Context,
	stored *attestationDomain.DailyMerkleRoot,
	events []attestationDomain.Event,
) (bool, error) {
	if stored == nil {
		return false, apperrors.Wrap(apperrors.ErrInvalidInput, "stored root is required")
	}

	root := attestationService.RootOf(events)
	var reason string
	switch {
	case !signature.TimingSafeEqual([]byte(root), []byte(stored.Root)):
		reason = "root mismatch"
	case stored.EventCount != len(events):
		reason = "event count mismatch"
	case l.signer != nil && !l.signer.Verify(stored):
		reason = "signature mismatch"
	}

	if reason == "" {
		l.metrics.RecordOperation(ctx, metricsDomain, "verify_root", "success")
		return true, nil
	}

	l.metrics.RecordOperation(ctx, metricsDomain, "verify_root", "integrity_violation")
	l.logger.Error("attestation integrity violation",
		slog.String("alert", attestationDomain.ActionIntegrityViolation),
		slog.String("date", stored.Date),
		slog.String("reason", reason),
		slog.String("stored_root", stored.Root),
		slog.String("computed_root", root),
		slog.Int("stored_count", stored.EventCount),
		slog.Int("computed_count", len(events)),
	)

	violation := attestationDomain.NewEvent(
		attestationDomain.ActionIntegrityViolation,
		SystemActor,
		[]byte(stored.Date+"|"+stored.Root),
		map[string]string{"date": stored.Date, "reason": reason},
		l.now(),
	)
	if err := l.AppendEvent(ctx, violation); err != nil {
		l.reportLoss(ctx, "integrity violation could not be recorded", err)
	}
	return false, nil
}

func (l *attestationLog) GetRoot(
	ctx context.Context,
	date string,
	segment int,
) (*attestationDomain.DailyMerkleRoot, error) {
	day, err := attestationDomain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return l.repo.Get(ctx, day, segment)
}

func (l *attestationLog) ListRoots(
	ctx context.Context,
	offset, limit int,
) ([]*attestationDomain.DailyMerkleRoot, error) {
	return l.repo.List(ctx, offset, limit)
}

func (l *attestationLog) Snapshot() []attestationDomain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func (l *attestationLog) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return attestationDomain.ErrLogClosed
	}
	if l.running {
		l.mu.Unlock()
		return errors.New("attestation log is already running")
	}
	l.running = true
	l.runDone = make(chan struct{})
	done := l.runDone
	l.mu.Unlock()

	defer close(done)

	for {
		timer := time.NewTimer(untilNextMidnight(l.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-l.stop:
			timer.Stop()
			return nil
		case <-timer.C:
			l.tick(ctx)
		}
	}
}

func (l *attestationLog) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })

	l.mu.Lock()
	l.closed = true
	done := l.runDone
	buffered := len(l.events)
	pending := len(l.pending)
	l.mu.Unlock()

	if buffered > 0 || pending > 0 {
		l.logger.Warn("attestation log stopped with unsealed data",
			slog.Int("buffered_events", buffered),
			slog.Int("pending_roots", pending))
	}

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick seals the previous day if the date has changed and retries failed roots.
func (l *attestationLog) tick(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked(ctx)
	l.retryPendingLocked(ctx)
}

// rolloverLocked seals the buffered day when the UTC date has moved on.
func (l *attestationLog) rolloverLocked(ctx context.Context) {
	today := attestationDomain.Day(l.now())
	if l.day == "" {
		l.day = today
		return
	}
	if l.day == today {
		return
	}

	root, err := l.buildRootLocked()
	if err != nil {
		l.reportLoss(ctx, "failed to build merkle root", err)
	} else if err := l.saveLocked(ctx, root, l.checkpointed); err != nil {
		l.reportLoss(ctx, "failed to persist merkle root, will retry", err,
			slog.String("root", root.Key()))
		l.pending = append(l.pending, pendingRoot{root: root, overwrite: l.checkpointed})
	} else {
		l.metrics.RecordOperation(ctx, metricsDomain, "seal_day", "success")
		l.logger.Info("attestation day sealed",
			slog.String("root_key", root.Key()),
			slog.String("root", root.Root),
			slog.Int("event_count", root.EventCount))
	}

	l.day = today
	l.events = nil
	l.checkpointed = false
	l.segment = 0
}

func (l *attestationLog) retryPendingLocked(ctx context.Context) {
	remaining := l.pending[:0]
	for _, p := range l.pending {
		if err := l.saveLocked(ctx, p.root, p.overwrite); err != nil {
			l.reportLoss(ctx, "failed to persist merkle root, will retry", err, slog.String("root", p.root.Key()))
			remaining = append(remaining, p)
			continue
		}
		l.logger.Info("attestation root persisted after retry", slog.String("root", p.root.Key()))
	}
	l.pending = remaining
}

// saveLocked stores root. Without overwrite an existing record is never replaced:
// root moves to the next free segment of its day and is signed again.
func (l *attestationLog) saveLocked(
	ctx context.Context,
	root *attestationDomain.DailyMerkleRoot,
	overwrite bool,
) error {
	for {
		err := l.repo.Save(ctx, root, overwrite)
		if overwrite || !errors.Is(err, attestationDomain.ErrRootExists) || root.Segment >= attestationDomain.MaxSegment {
			return err
		}

		taken := root.Key()
		root.Segment++
		if err := l.sign(root); err != nil {
			return err
		}
		l.metrics.RecordOperation(ctx, metricsDomain, "persist_root", "new_segment")
		l.logger.Warn("attestation day already stored by another run, writing a new segment",
			slog.String("existing", taken),
			slog.String("root", root.Key()))
	}
}

func (l *attestationLog) buildRootLocked() (*attestationDomain.DailyMerkleRoot, error) {
	root := &attestationDomain.DailyMerkleRoot{
		Date:        l.day,
		Segment:     l.segment,
		Root:        attestationService.RootOf(l.events),
		EventCount:  len(l.events),
		BuildHash:   l.opts.BuildHash,
		ImageDigest: l.opts.ImageDigest,
		ComputedAt:  l.now().UTC().Truncate(time.Second),
	}
	if err := l.sign(root); err != nil {
		return nil, err
	}
	return root, nil
}

func (l *attestationLog) sign(root *attestationDomain.DailyMerkleRoot) error {
	if l.signer == nil {
		return nil
	}
	return l.signer.Sign(root)
}

// reportLoss is the operator-visible signal for audit data that did not reach storage.
func (l *attestationLog) reportLoss(ctx context.Context, msg string, err error, attrs ...any) {
	l.metrics.RecordOperation(ctx, metricsDomain, "persist_root", "error")
	attrs = append(attrs,
		slog.String("alert", attestationDomain.ActionAuditLoss),
		slog.Any("error", err))
	l.logger.Error(msg, attrs...)
}

func untilNextMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}
