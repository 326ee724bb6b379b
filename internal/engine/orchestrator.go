package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/internal/store"
	"github.com/danielolaszy/tether/pkg/models"
)

// Remote is the project collaborator a sync targets. Implementations map
// their transport failures onto the engine's error taxonomy.
type Remote interface {
	FetchProject(ctx context.Context, id string) (*models.ProjectRecord, error)
	PushEdits(ctx context.Context, id string, edits ChangeSet) error
}

// Presenter supplies resolutions for manual conflicts and displays terminal
// failures. The engine never decides a manual conflict itself.
type Presenter interface {
	ResolveConflicts(ctx context.Context, report *ConflictReport) (map[EditKey]Choice, error)
	ShowFailure(projectID string, err error)
}

// SyncOptions control one sync run.
type SyncOptions struct {
	// DryRun stops before Applying and returns the report without
	// touching local files or the remote.
	DryRun bool
	// Prefer resolves manual conflicts by rule instead of the presenter.
	// Field type changes are never rule-resolved.
	Prefer Choice
}

// Result describes a finished (or dry-run) sync.
type Result struct {
	OperationID string
	ProjectID   string
	Final       State
	// Report is the three-way classification, nil when the run
	// bootstrapped a first mirror.
	Report *ConflictReport
	// Applied counts edits written into the local record; Pushed counts
	// edits sent to the remote.
	Applied int
	Pushed  int
	// Bootstrapped is set when no snapshot existed and the remote state
	// was mirrored without comparison.
	Bootstrapped bool
	DryRun       bool
}

// Orchestrator sequences fetch, compare, resolve and apply for mirrored
// projects, holding an advisory per-identifier lock for the duration.
type Orchestrator struct {
	store     *store.Store
	remote    Remote
	presenter Presenter

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator wires an orchestrator. presenter may be nil when callers
// always resolve by rule.
func NewOrchestrator(st *store.Store, remote Remote, presenter Presenter) *Orchestrator {
	return &Orchestrator{
		store:     st,
		remote:    remote,
		presenter: presenter,
		inFlight:  make(map[string]struct{}),
	}
}

// Sync runs one full synchronization for id. A second concurrent call for
// the same id fails with ErrSyncInProgress. Cancellation is honored while
// fetching and while awaiting resolution; once applying starts the run
// completes or fails on its own terms.
func (o *Orchestrator) Sync(ctx context.Context, id string, opts SyncOptions) (*Result, error) {
	if !o.acquire(id) {
		return nil, ErrSyncInProgress
	}
	defer o.release(id)

	op := &operation{id: uuid.NewString(), projectID: id, state: StateIdle}
	res := &Result{OperationID: op.id, ProjectID: id, DryRun: opts.DryRun}

	fail := func(err error) (*Result, error) {
		if terr := op.transition(StateFailed); terr != nil {
			logging.Error("sync failure transition", "operation", op.id, "error", terr)
		}
		res.Final = StateFailed
		if o.presenter != nil {
			o.presenter.ShowFailure(id, err)
		}
		return res, err
	}

	if err := op.transition(StateFetching); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	remoteRec, err := o.remote.FetchProject(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("fetching project %s: %w", id, err))
	}

	if err := op.transition(StateComparing); err != nil {
		return fail(err)
	}

	snap, err := o.store.LoadSnapshot(id)
	if errors.Is(err, store.ErrNotFound) {
		// First sync: mirror the remote state without comparison.
		res.Bootstrapped = true
		if opts.DryRun {
			res.Final = op.state
			return res, nil
		}
		if err := op.transition(StateApplying); err != nil {
			return fail(err)
		}
		if err := o.persist(id, remoteRec); err != nil {
			return fail(err)
		}
		if err := op.transition(StateDone); err != nil {
			return fail(err)
		}
		res.Final = StateDone
		logging.Info("mirrored project", "project", id, "items", len(remoteRec.Items))
		return res, nil
	}
	if err != nil {
		return fail(err)
	}

	local, err := o.store.Load(id)
	if errors.Is(err, store.ErrNotFound) {
		// Snapshot exists but the pair is gone; treat the base as the
		// local state so the remote differences re-materialize the files.
		local = snap.Record.Clone()
	} else if err != nil {
		return fail(err)
	}

	base := &snap.Record
	report := Resolve(base, local, remoteRec)
	res.Report = report

	if opts.DryRun {
		res.Final = op.state
		return res, nil
	}

	resolutions := make(map[EditKey]Choice)
	if report.NeedsResolution() {
		if err := op.transition(StateAwaitingResolution); err != nil {
			return fail(err)
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if opts.Prefer != "" {
			resolutions, err = ruleResolve(report, opts.Prefer)
		} else if o.presenter != nil {
			resolutions, err = o.presenter.ResolveConflicts(ctx, report)
		} else {
			err = errors.New("manual conflicts present and no resolver configured")
		}
		if err != nil {
			return fail(err)
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
	}

	// Every edit must hold a verdict or a resolution before Applying.
	applyList, pushList, err := report.planEdits(resolutions)
	if err != nil {
		return fail(err)
	}

	if err := op.transition(StateApplying); err != nil {
		return fail(err)
	}

	merged := applyEdits(local, applyList)
	if len(pushList) > 0 {
		if err := o.remote.PushEdits(context.WithoutCancel(ctx), id, ChangeSet{Edits: pushList}); err != nil {
			return fail(fmt.Errorf("pushing %d edits: %w", len(pushList), err))
		}
	}
	if err := o.persist(id, merged); err != nil {
		return fail(err)
	}

	if err := op.transition(StateDone); err != nil {
		return fail(err)
	}
	res.Final = StateDone
	res.Applied = len(applyList)
	res.Pushed = len(pushList)
	logging.Info("sync complete", "project", id, "applied", res.Applied, "pushed", res.Pushed)
	return res, nil
}

// Outcome is one project's result from SyncAll.
type Outcome struct {
	ProjectID string
	Result    *Result
	Err       error
}

// SyncAll runs Sync sequentially for every mirrored project.
func (o *Orchestrator) SyncAll(ctx context.Context, opts SyncOptions) ([]Outcome, error) {
	ids, err := o.store.List()
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		result, err := o.Sync(ctx, id, opts)
		outcomes = append(outcomes, Outcome{ProjectID: id, Result: result, Err: err})
	}
	return outcomes, nil
}

// Mirror fetches the remote state and overwrites the local mirror and
// snapshot, backing up any prior version. Used for the first fetch and for
// explicit re-mirroring.
func (o *Orchestrator) Mirror(ctx context.Context, id string) (*models.ProjectRecord, error) {
	if !o.acquire(id) {
		return nil, ErrSyncInProgress
	}
	defer o.release(id)

	rec, err := o.remote.FetchProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", id, err)
	}
	if err := o.persist(id, rec); err != nil {
		return nil, err
	}
	logging.Info("mirrored project", "project", id, "fields", len(rec.Fields), "items", len(rec.Items))
	return rec, nil
}

// ApplyLocalEdit validates and persists an edited document under the same
// per-identifier lock syncs use.
func (o *Orchestrator) ApplyLocalEdit(id string, yamlText []byte) (*models.ProjectRecord, error) {
	if !o.acquire(id) {
		return nil, ErrSyncInProgress
	}
	defer o.release(id)

	return o.store.SaveLocalEdit(id, yamlText)
}

// DiffLocal returns the changes between the snapshot base and the current
// local record. ErrNeverSynced when no snapshot exists.
func (o *Orchestrator) DiffLocal(id string) (ChangeSet, error) {
	snap, err := o.store.LoadSnapshot(id)
	if errors.Is(err, store.ErrNotFound) {
		return ChangeSet{}, ErrNeverSynced
	}
	if err != nil {
		return ChangeSet{}, err
	}

	local, err := o.store.Load(id)
	if errors.Is(err, store.ErrNotFound) {
		local = snap.Record.Clone()
	} else if err != nil {
		return ChangeSet{}, err
	}
	return Diff(&snap.Record, local), nil
}

// DiffRemote fetches the remote state and returns its changes against the
// snapshot base without mutating anything.
func (o *Orchestrator) DiffRemote(ctx context.Context, id string) (ChangeSet, error) {
	snap, err := o.store.LoadSnapshot(id)
	if errors.Is(err, store.ErrNotFound) {
		return ChangeSet{}, ErrNeverSynced
	}
	if err != nil {
		return ChangeSet{}, err
	}

	remoteRec, err := o.remote.FetchProject(ctx, id)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("fetching project %s: %w", id, err)
	}
	return Diff(&snap.Record, remoteRec), nil
}

func (o *Orchestrator) persist(id string, rec *models.ProjectRecord) error {
	if err := o.store.Save(id, rec); err != nil {
		return err
	}
	snap, err := store.NewSnapshot(rec)
	if err != nil {
		return err
	}
	return o.store.SaveSnapshot(id, &snap)
}

func ruleResolve(report *ConflictReport, prefer Choice) (map[EditKey]Choice, error) {
	if prefer != ChooseLocal && prefer != ChooseRemote {
		return nil, fmt.Errorf("invalid resolution preference %q", prefer)
	}

	out := make(map[EditKey]Choice)
	for _, entry := range report.Manual() {
		if entry.SchemaChange {
			return nil, &SchemaConflictError{FieldName: entry.Key.ID}
		}
		out[entry.Key] = prefer
	}
	return out, nil
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[id]; busy {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, id)
}
