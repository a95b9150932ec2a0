package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	canaryDomain "github.com/allisson/trustcore/internal/canary/domain"
	apperrors "github.com/allisson/trustcore/internal/errors"
	"github.com/allisson/trustcore/internal/metrics"
	"github.com/allisson/trustcore/internal/signature"
)

const metricsDomain = "canary"

// Default alert rate limit.
const (
	DefaultAlertRate  = rate.Limit(1)
	DefaultAlertBurst = 5
)

// Options configures alert dispatch. Alert and Recorder are optional.
type Options struct {
	Alert      AlertFunc
	Recorder   EventRecorder
	AlertRate  rate.Limit
	AlertBurst int
}

type registry struct {
	salt     []byte
	alert    AlertFunc
	recorder EventRecorder
	limiter  *rate.Limiter
	metrics  metrics.BusinessMetrics
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	tokens   map[string]*canaryDomain.Token
	triggers int
	dropped  int
}

// NewRegistry creates an empty Registry whose stable hashes are salted with salt.
func NewRegistry(
	salt []byte,
	opts Options,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) Registry {
	if opts.AlertRate <= 0 {
		opts.AlertRate = DefaultAlertRate
	}
	if opts.AlertBurst <= 0 {
		opts.AlertBurst = DefaultAlertBurst
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &registry{
		salt:     slices.Clone(salt),
		alert:    opts.Alert,
		recorder: opts.Recorder,
		limiter:  rate.NewLimiter(opts.AlertRate, opts.AlertBurst),
		metrics:  businessMetrics,
		logger:   logger,
		now:      time.Now,
		tokens:   make(map[string]*canaryDomain.Token),
	}
}

func (r *registry) InsertCanary(functionPath, id string) (*canaryDomain.Token, error) {
	if err := canaryDomain.ValidateRegistration(functionPath, id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tokens[id]; ok {
		if existing.FunctionPath != functionPath {
			return nil, apperrors.Wrapf(canaryDomain.ErrCanaryExists, "%s is planted at %s", id, existing.FunctionPath)
		}
		token := *existing
		return &token, nil
	}

	token := &canaryDomain.Token{
		CanaryID:     id,
		FunctionPath: functionPath,
		StableHash:   canaryDomain.StableHash(id, r.salt),
		CreatedAt:    r.now().UTC(),
	}
	r.tokens[id] = token

	out := *token
	return &out, nil
}

func (r *registry) TriggerCanary(ctx context.Context, id string, details map[string]string) canaryDomain.Trigger {
	r.mu.Lock()
	token, registered := r.tokens[id]
	r.triggers++
	trigger := canaryDomain.Trigger{
		CanaryID:    id,
		Context:     maps.Clone(details),
		Stack:       string(debug.Stack()),
		TriggeredAt: r.now().UTC(),
		Registered:  registered,
	}
	if registered {
		trigger.FunctionPath = token.FunctionPath
	}
	r.mu.Unlock()

	r.logger.Error("canary triggered",
		slog.String("alert", attestationDomain.ActionCanaryTriggered),
		slog.String("canary_id", id),
		slog.String("function_path", trigger.FunctionPath),
		slog.Bool("registered", registered),
		slog.Any("context", trigger.Context),
	)
	r.metrics.RecordOperation(ctx, metricsDomain, "trigger", "triggered")

	r.record(ctx, trigger)
	r.dispatch(ctx, trigger)
	return trigger
}

// record appends the trigger to the attestation log. Failures are logged, never returned.
func (r *registry) record(ctx context.Context, trigger canaryDomain.Trigger) {
	if r.recorder == nil {
		return
	}

	metadata := map[string]string{"canary_id": trigger.CanaryID}
	if trigger.FunctionPath != "" {
		metadata["function_path"] = trigger.FunctionPath
	}
	event := attestationDomain.NewEvent(
		attestationDomain.ActionCanaryTriggered,
		"canary:"+trigger.CanaryID,
		[]byte(trigger.CanaryID),
		metadata,
		trigger.TriggeredAt,
	)
	if err := r.recorder.AppendEvent(ctx, event); err != nil {
		r.logger.Error("failed to record canary trigger",
			slog.String("alert", attestationDomain.ActionAuditLoss),
			slog.String("canary_id", trigger.CanaryID),
			slog.Any("error", err),
		)
	}
}

func (r *registry) dispatch(ctx context.Context, trigger canaryDomain.Trigger) {
	if r.alert == nil {
		return
	}
	if !r.limiter.Allow() {
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()

		r.logger.Warn("canary alert dropped by rate limit",
			slog.String("canary_id", trigger.CanaryID),
			slog.Int("dropped_total", dropped),
		)
		r.metrics.RecordOperation(ctx, metricsDomain, "alert", "dropped")
		return
	}
	r.alert(ctx, trigger)
	r.metrics.RecordOperation(ctx, metricsDomain, "alert", "sent")
}

func (r *registry) VerifyCanaryHash(id, expected string) bool {
	r.mu.RLock()
	token, ok := r.tokens[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return signature.TimingSafeEqual([]byte(token.StableHash), []byte(expected))
}

func (r *registry) Get(id string) (*canaryDomain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[id]
	if !ok {
		return nil, canaryDomain.ErrCanaryNotFound
	}
	out := *token
	return &out, nil
}

func (r *registry) List() []*canaryDomain.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]*canaryDomain.Token, 0, len(r.tokens))
	for _, id := range slices.Sorted(maps.Keys(r.tokens)) {
		token := *r.tokens[id]
		tokens = append(tokens, &token)
	}
	return tokens
}

func (r *registry) TriggerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.triggers
}

func (r *registry) DroppedAlerts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

func (r *registry) ExportManifest(w io.Writer) error {
	tokens := r.List()
	manifest := canaryDomain.Manifest{Canaries: make([]canaryDomain.ManifestEntry, 0, len(tokens))}
	for _, token := range tokens {
		manifest.Canaries = append(manifest.Canaries, canaryDomain.ManifestEntry{
			CanaryID:         token.CanaryID,
			StableHash:       token.StableHash,
			ExpectedTriggers: token.ExpectedTriggers,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return apperrors.Wrap(err, "failed to write canary manifest")
	}
	return nil
}
