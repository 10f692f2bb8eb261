package settings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/alexjbarnes/settings-sync/internal/metrics"
	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/alexjbarnes/settings-sync/internal/remote"
	"github.com/alexjbarnes/settings-sync/internal/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Phase is a step of one reconciliation cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseComparing
	PhaseMerging
	PhaseApplying
	PhasePersisting
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseComparing:
		return "comparing"
	case PhaseMerging:
		return "merging"
	case PhaseApplying:
		return "applying"
	case PhasePersisting:
		return "persisting"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// Outcome is how a pull cycle ended.
type Outcome int

const (
	// OutcomeApplied means the remote document replaced the local one.
	OutcomeApplied Outcome = iota + 1
	// OutcomeSkipped means the remote carried the local syncHash.
	OutcomeSkipped
	// OutcomeEmpty means the remote holds no document yet.
	OutcomeEmpty
	// OutcomeFailed means the cycle stopped on an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return metrics.OutcomeApplied
	case OutcomeSkipped:
		return metrics.OutcomeSkipped
	case OutcomeEmpty:
		return metrics.OutcomeEmpty
	case OutcomeFailed:
		return metrics.OutcomeFailed
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

//go:generate mockgen -destination=mock_backend_test.go -package=settings github.com/alexjbarnes/settings-sync/internal/remote Backend

// BackendSelector picks the backend for the given options.
type BackendSelector func(opts models.GeneralOptions) remote.Backend

// CycleStatus describes the last finished pull cycle.
type CycleStatus struct {
	Phase     Phase
	Outcome   Outcome
	Backend   string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type cycleKey struct{}

// Reconciler runs pull cycles against the selected remote backend and
// the outward save paths. One cycle runs at a time; concurrent Pull
// callers share its result.
type Reconciler struct {
	store     *Store
	persister Persister
	backends  BackendSelector
	migrator  Migrator
	propagate propagation
	metrics   *metrics.Metrics
	logger    *slog.Logger

	group singleflight.Group

	// applyMu serializes every wholesale swap: pull applies, restores
	// and factory resets.
	applyMu sync.Mutex

	phase  atomic.Int32
	lastMu sync.Mutex
	last   CycleStatus
}

// Pull runs one reconciliation cycle. A cycle started from inside
// another one (for example by a propagation sink) is refused with
// ErrSyncInFlight. Cancelling ctx stops this caller waiting but does not
// abort a cycle other callers share.
func (r *Reconciler) Pull(ctx context.Context) (Outcome, error) {
	if ctx.Value(cycleKey{}) != nil {
		return OutcomeFailed, errors.ErrSyncInFlight
	}

	if !r.store.Current().Options.SyncSettings {
		return OutcomeFailed, errors.ErrSyncDisabled
	}

	// The shared cycle must outlive whichever caller started it, so it
	// runs detached from that caller's cancellation. Each caller still
	// stops waiting when its own ctx ends.
	ch := r.group.DoChan("pull", func() (any, error) {
		return r.cycle(context.WithValue(context.WithoutCancel(ctx), cycleKey{}, true))
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("joined in-flight sync cycle")
		}

		return res.Val.(Outcome), res.Err
	case <-ctx.Done():
		return OutcomeFailed, ctx.Err()
	}
}

// OnRemoteChanged reacts to a change event from the platform store. It
// does nothing while sync is off or while WebDAV is the selected
// backend.
func (r *Reconciler) OnRemoteChanged(ctx context.Context) {
	opts := r.store.Current().Options

	if !opts.SyncSettings {
		r.logger.Debug("sync is disabled, ignoring remote change")
		return
	}

	if opts.SyncWebDavServerEnabled {
		r.logger.Debug("webdav sync is enabled, ignoring sync store change")
		return
	}

	outcome, err := r.Pull(ctx)
	if err != nil {
		r.logger.Warn("applying remote change failed",
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Reconciler) cycle(ctx context.Context) (Outcome, error) {
	start := time.Now()
	local := r.store.Current()
	backend := r.backends(local.Options)

	outcome, err := r.runPhases(ctx, backend, local)

	if err != nil && !stderrors.Is(err, errors.ErrNoOpSkip) {
		r.setPhase(PhaseError)
		r.logger.Warn("sync cycle failed",
			slog.String("backend", backend.Name()),
			slog.String("error", err.Error()),
		)
	} else {
		err = nil
	}

	r.setPhase(PhaseIdle)

	d := time.Since(start)
	r.metrics.ObserveCycle(outcome.String(), d)

	r.lastMu.Lock()
	r.last = CycleStatus{
		Phase:     PhaseIdle,
		Outcome:   outcome,
		Backend:   backend.Name(),
		Err:       err,
		StartedAt: start,
		Duration:  d,
	}
	r.lastMu.Unlock()

	return outcome, err
}

func (r *Reconciler) runPhases(ctx context.Context, backend remote.Backend, local *models.Configuration) (Outcome, error) {
	r.setPhase(PhaseFetching)

	payload, err := backend.Get(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("fetching remote settings: %w", err)
	}

	if payload == nil {
		r.logger.Debug("remote holds no settings", slog.String("backend", backend.Name()))
		return OutcomeEmpty, nil
	}

	if !gjson.ValidBytes(payload) || !gjson.GetBytes(payload, "options").IsObject() {
		return OutcomeFailed, fmt.Errorf("%w: remote document has no options", errors.ErrDecode)
	}

	r.setPhase(PhaseComparing)

	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	// Re-read under the lock; a restore may have swapped since.
	local = r.store.Current()

	remoteHash := gjson.GetBytes(payload, "syncHash").String()
	if remoteHash == local.SyncHash {
		r.logger.Debug("sync hash unchanged, ignoring remote settings", slog.String("sync_hash", remoteHash))
		return OutcomeSkipped, errors.ErrNoOpSkip
	}

	r.setPhase(PhaseMerging)

	incoming, err := models.DecodeConfiguration(payload)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}

	if err := r.migrator.Migrate(incoming, incoming.Version); err != nil {
		return OutcomeFailed, fmt.Errorf("migrating remote settings: %w", err)
	}

	incoming.Version = local.Version

	revertSyncOptions(incoming, local)
	MergeNonSyncable(incoming, local)
	UpdateSmartProfilesRulesProxyServer(incoming)

	r.setPhase(PhaseApplying)

	r.store.Swap(incoming.Clone())

	r.logger.Info("applied remote settings",
		slog.String("backend", backend.Name()),
		slog.String("sync_hash", incoming.SyncHash),
	)
	r.logger.Debug("remote settings change summary", slog.String("changes", changeSummary(local, incoming)))

	r.setPhase(PhasePersisting)

	if err := r.persister.SaveLocal(ctx, state.FullPatch(incoming)); err != nil {
		r.logger.Error("caching synced settings locally failed", slog.String("error", err.Error()))
	}

	r.propagate.run(ctx)

	return OutcomeApplied, nil
}

// SaveAllSync stamps a new syncHash, saves everything locally and, when
// push is set and sync is on, pushes the syncable projection to the
// selected backend. A push failure is returned but never undoes the
// local save.
func (r *Reconciler) SaveAllSync(ctx context.Context, push bool) error {
	cfg := r.store.Mutate(func(c *models.Configuration) {
		c.SyncHash = uuid.NewString()
	})

	localErr := r.SaveAllLocal(ctx, true)

	if !push || !cfg.Options.SyncSettings {
		return localErr
	}

	return stderrors.Join(localErr, r.push(ctx, cfg))
}

func (r *Reconciler) push(ctx context.Context, cfg *models.Configuration) error {
	backend := r.backends(cfg.Options)

	payload, err := json.Marshal(StripSyncable(cfg))
	if err != nil {
		return fmt.Errorf("encoding syncable settings: %w", err)
	}

	if err := backend.Put(ctx, payload); err != nil {
		r.metrics.ObservePush(backend.Name(), metrics.OutcomeFailed)
		r.logger.Error("pushing settings failed",
			slog.String("backend", backend.Name()),
			slog.String("error", err.Error()),
		)

		return fmt.Errorf("pushing settings: %w", err)
	}

	r.metrics.ObservePush(backend.Name(), metrics.OutcomeSuccess)
	r.logger.Info("settings pushed",
		slog.String("backend", backend.Name()),
		slog.String("sync_hash", cfg.SyncHash),
		slog.Int("bytes", len(payload)),
	)

	return nil
}

// SaveAllLocal writes the whole document locally. Without force it is
// skipped while sync is on.
func (r *Reconciler) SaveAllLocal(ctx context.Context, force bool) error {
	cfg := r.store.Current()

	if !force && cfg.Options.SyncSettings {
		return nil
	}

	if err := r.persister.SaveLocal(ctx, state.FullPatch(cfg)); err != nil {
		return fmt.Errorf("saving settings locally: %w", err)
	}

	return nil
}

// saveField writes one subtree locally unless sync is on, in which case
// the caller is expected to go through SaveAllSync.
func (r *Reconciler) saveField(ctx context.Context, key string, value func(*models.Configuration) any) error {
	cfg := r.store.Current()

	if cfg.Options.SyncSettings {
		return nil
	}

	if err := r.persister.SaveLocal(ctx, state.Patch{key: value(cfg)}); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	return nil
}

func (r *Reconciler) SaveOptions(ctx context.Context) error {
	return r.saveField(ctx, state.KeyOptions, func(c *models.Configuration) any { return c.Options })
}

func (r *Reconciler) SaveProxyServers(ctx context.Context) error {
	return r.saveField(ctx, state.KeyProxyServers, func(c *models.Configuration) any { return c.ProxyServers })
}

func (r *Reconciler) SaveProxyServerSubscriptions(ctx context.Context) error {
	return r.saveField(ctx, state.KeyProxyServerSubscriptions, func(c *models.Configuration) any {
		return c.ProxyServerSubscriptions
	})
}

func (r *Reconciler) SaveSmartProfiles(ctx context.Context) error {
	return r.saveField(ctx, state.KeyProxyProfiles, func(c *models.Configuration) any { return c.ProxyProfiles })
}

func (r *Reconciler) SaveDefaultProxyServer(ctx context.Context) error {
	return r.saveField(ctx, state.KeyDefaultProxyServerID, func(c *models.Configuration) any {
		return c.DefaultProxyServerID
	})
}

func (r *Reconciler) SaveActiveProfile(ctx context.Context) error {
	return r.saveField(ctx, state.KeyActiveProfileID, func(c *models.Configuration) any { return c.ActiveProfileID })
}

// SaveUpdateInfo records the update check result and saves for sync.
func (r *Reconciler) SaveUpdateInfo(ctx context.Context, info models.UpdateInfo) error {
	r.store.Mutate(func(c *models.Configuration) {
		c.UpdateInfo = &info
	})

	return r.SaveAllSync(ctx, true)
}

// Phase returns the phase of the running cycle, or PhaseIdle.
func (r *Reconciler) Phase() Phase {
	return Phase(r.phase.Load())
}

// LastCycle returns the status of the last finished cycle. The zero
// value means no cycle has run.
func (r *Reconciler) LastCycle() CycleStatus {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()

	return r.last
}

func (r *Reconciler) setPhase(p Phase) {
	old := Phase(r.phase.Swap(int32(p)))
	if old != p {
		r.logger.Debug("sync phase", slog.String("from", old.String()), slog.String("to", p.String()))
	}
}

// swap installs cfg under the apply lock.
func (r *Reconciler) swap(cfg *models.Configuration) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	r.store.Swap(cfg)
}
