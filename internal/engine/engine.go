package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
	"github.com/fleetmirror/fleetmirror/internal/store"
)

// defaultHostsPerPage matches the server's maximum sensible page size.
const defaultHostsPerPage = 100

// API is the slice of the Fleet client the engine consumes. Satisfied by
// *fleet.Client.
type API interface {
	HasToken() bool
	Version(ctx context.Context) (string, error)
	Teams(ctx context.Context) ([]fleet.Team, error)
	Labels(ctx context.Context) ([]fleet.Label, error)
	HostsPage(ctx context.Context, page, perPage int) ([]fleet.Host, error)
	HostLabels(ctx context.Context, hostID int64) ([]fleet.HostLabel, error)
	PoliciesAll(ctx context.Context, teams []fleet.Team) ([]fleet.Policy, error)
	PolicyHosts(ctx context.Context, policyID int64, status fleet.PolicyStatus) ([]fleet.PolicyResult, error)
}

// Config holds the engine's tunables.
type Config struct {
	Workers      int // fetch pool width
	HostsPerPage int // host pagination page size
}

// Engine runs one differential sync pass per RunOnce call. Phases execute
// strictly sequentially; the fetch pool inside a phase is the only source
// of parallelism, and it is drained before the phase writes.
type Engine struct {
	api    API
	store  *store.Store
	cfg    Config
	logger *slog.Logger
}

// Report summarizes one sync pass. Fetch-failure counters are part of the
// report so a run with silent upstream trouble is distinguishable from a
// genuinely quiet run.
type Report struct {
	SyncID int64
	Status string
	NoOp   bool

	HostsFetched      int
	HostsChanged      int
	StaleHostsRemoved int
	PoliciesFetched   int
	PoliciesChanged   int
	ResultsChanged    int
	LabelFetchFailed  int
	ResultFetchFailed int

	Duration time.Duration
}

// New creates an Engine. Zero config fields fall back to defaults.
func New(api API, st *store.Store, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	if cfg.HostsPerPage <= 0 {
		cfg.HostsPerPage = defaultHostsPerPage
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{api: api, store: st, cfg: cfg, logger: logger}
}

// RunOnce executes a single sync pass and finalizes its run record exactly
// once: success with counters, or failed with a truncated error message.
// Phases already committed before a failure stay applied; recovery is the
// next scheduled invocation, never an in-run retry.
//
// Without a configured API token the pass is an intentional no-op recorded
// as a zero-count success, so status dashboards show "not configured"
// rather than a false alarm.
func (e *Engine) RunOnce(ctx context.Context) (*Report, error) {
	start := time.Now()

	e.logger.Info("sync pass starting")

	syncID, err := e.store.CreateSyncRun(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{SyncID: syncID}

	if !e.api.HasToken() {
		report.NoOp = true
		report.Status = store.RunStatusSuccess
		report.Duration = time.Since(start)

		if err := e.store.CompleteSyncRun(ctx, syncID, store.RunCounts{}, report.Duration); err != nil {
			return report, err
		}

		e.logger.Warn("no API token configured, recording no-op sync pass")

		return report, nil
	}

	if runErr := e.runPhases(ctx, report); runErr != nil {
		report.Status = store.RunStatusFailed
		report.Duration = time.Since(start)

		e.logger.Error("sync pass failed",
			slog.Int64("sync_id", syncID),
			slog.String("error", runErr.Error()),
			slog.Duration("duration", report.Duration),
		)

		if failErr := e.store.FailSyncRun(ctx, syncID, runCounts(report), runErr, report.Duration); failErr != nil {
			e.logger.Error("recording failed sync run", slog.String("error", failErr.Error()))
		}

		return report, runErr
	}

	report.Status = store.RunStatusSuccess
	report.Duration = time.Since(start)

	if err := e.store.CompleteSyncRun(ctx, syncID, runCounts(report), report.Duration); err != nil {
		return report, err
	}

	e.logger.Info("sync pass complete",
		slog.Int64("sync_id", syncID),
		slog.Int("hosts_changed", report.HostsChanged),
		slog.Int("policies_changed", report.PoliciesChanged),
		slog.Int("results_changed", report.ResultsChanged),
		slog.Duration("duration", report.Duration),
	)

	return report, nil
}

func runCounts(r *Report) store.RunCounts {
	return store.RunCounts{
		HostsChanged:    r.HostsChanged,
		PoliciesChanged: r.PoliciesChanged,
		ResultsChanged:  r.ResultsChanged,
	}
}

// runPhases executes the ordered sync phases. Each phase commits its own
// writes, so a failure in phase N leaves phases 1..N-1 durably applied.
//
// Failure policy per phase: the small full fetches (version, teams, labels,
// policies) degrade to an empty result and the pass continues; an empty
// reference set is idempotent and harmless. Host pagination is the
// exception: a partial sweep would corrupt the stale-host baseline and
// under-count the fleet, so the first failing page fails the whole pass.
// Store write failures always fail the pass.
func (e *Engine) runPhases(ctx context.Context, report *Report) error {
	if version, err := e.api.Version(ctx); err == nil {
		e.logger.Info("fleet server reachable", slog.String("version", version))
	}

	// Phase 1: teams, full fetch.
	teams, err := e.api.Teams(ctx)
	if err != nil {
		e.logger.Warn("fetching teams failed", slog.String("error", err.Error()))
		teams = nil
	}

	if err := e.store.UpsertTeams(ctx, teams); err != nil {
		return err
	}

	e.logger.Info("teams synced", slog.Int("count", len(teams)))

	// Phase 2: hosts, paginated with per-page commits and fingerprint
	// partitioning, then stale reconciliation over the complete sweep.
	changed, err := e.syncHosts(ctx, report)
	if err != nil {
		return err
	}

	// Phase 3: labels, full fetch.
	labels, err := e.api.Labels(ctx)
	if err != nil {
		e.logger.Warn("fetching labels failed", slog.String("error", err.Error()))
		labels = nil
	}

	if err := e.store.UpsertLabels(ctx, labels); err != nil {
		return err
	}

	e.logger.Info("labels synced", slog.Int("count", len(labels)))

	// Phase 4: label associations, changed hosts only.
	if err := e.syncHostLabels(ctx, changed, report); err != nil {
		return err
	}

	// Phase 5: policies, merged global + team fetch.
	policies, err := e.api.PoliciesAll(ctx, teams)
	if err != nil {
		e.logger.Warn("fetching policies failed", slog.String("error", err.Error()))
		policies = nil
	}

	rows := make([]store.PolicyRow, 0, len(policies))
	for i := range policies {
		rows = append(rows, store.PolicyRow{
			Policy:     policies[i],
			CISControl: extractCISControl(policies[i].Name, policies[i].Description),
		})
	}

	if err := e.store.UpsertPolicies(ctx, rows); err != nil {
		return err
	}

	report.PoliciesFetched = len(policies)
	e.logger.Info("policies synced", slog.Int("count", len(policies)))

	// Phase 6: per-host results, changed policies only.
	if err := e.syncPolicyResults(ctx, policies, report); err != nil {
		return err
	}

	// Phase 7: daily compliance rollup.
	return e.writeSnapshot(ctx)
}

// syncHosts paginates the host collection, upserting each page as its own
// commit and partitioning hosts into changed/unchanged by seen-time
// fingerprint. A page fetch failure aborts the pass with the pages so far
// already applied. Stale reconciliation runs only after a complete sweep,
// since deleting against a partial host list would remove live hosts.
func (e *Engine) syncHosts(ctx context.Context, report *Report) ([]fleet.Host, error) {
	stored, err := e.store.HostSeenTimes(ctx)
	if err != nil {
		return nil, err
	}

	var (
		changed    []fleet.Host
		fetchedIDs []int64
	)

	for page := 0; ; page++ {
		hosts, err := e.api.HostsPage(ctx, page, e.cfg.HostsPerPage)
		if err != nil {
			return nil, fmt.Errorf("engine: fetching host page %d: %w", page, err)
		}

		if len(hosts) == 0 {
			break
		}

		pageChanged := changedHosts(hosts, stored)

		if err := e.store.UpsertHosts(ctx, hosts); err != nil {
			return nil, err
		}

		for i := range hosts {
			fetchedIDs = append(fetchedIDs, hosts[i].ID)
		}

		changed = append(changed, pageChanged...)
		report.HostsFetched += len(hosts)
		report.HostsChanged += len(pageChanged)
	}

	removed, err := e.store.DeleteStaleHosts(ctx, fetchedIDs)
	if err != nil {
		return nil, err
	}

	report.StaleHostsRemoved = removed

	e.logger.Info("hosts synced",
		slog.Int("fetched", report.HostsFetched),
		slog.Int("changed", report.HostsChanged),
		slog.Int("stale_removed", removed),
	)

	return changed, nil
}

// syncHostLabels re-fetches label associations for the changed hosts
// through the bounded pool and replaces their rows. Unchanged hosts keep
// their associations untouched.
func (e *Engine) syncHostLabels(ctx context.Context, changed []fleet.Host, report *Report) error {
	if len(changed) == 0 {
		e.logger.Info("host labels skipped, no host changes")
		return nil
	}

	ids := make([]int64, len(changed))
	for i := range changed {
		ids[i] = changed[i].ID
	}

	assocs, stats := fetchAll(ctx, e.cfg.Workers, ids, "host-labels", e.logger,
		func(ctx context.Context, hostID int64) ([]fleet.HostLabel, error) {
			return e.api.HostLabels(ctx, hostID)
		})

	report.LabelFetchFailed = stats.Failed

	if err := e.store.ReplaceHostLabels(ctx, ids, assocs); err != nil {
		return err
	}

	e.logger.Info("host labels synced",
		slog.Int("hosts", len(ids)),
		slog.Int("associations", len(assocs)),
		slog.Int("fetch_failures", stats.Failed),
	)

	return nil
}

// resultUnit is one independent fetch unit: a changed policy's passing or
// failing host list.
type resultUnit struct {
	policyID int64
	status   fleet.PolicyStatus
}

// syncPolicyResults detects policies whose count pair moved, re-fetches
// their host lists through the bounded pool, and full-replaces their rows.
// Unchanged policies keep their result rows untouched.
func (e *Engine) syncPolicyResults(ctx context.Context, policies []fleet.Policy, report *Report) error {
	storedCounts, err := e.store.PolicyResultCounts(ctx)
	if err != nil {
		return err
	}

	changed := changedPolicies(policies, storedCounts)
	if len(changed) == 0 {
		e.logger.Info("policy results skipped, no count changes",
			slog.Int("policies", len(policies)),
		)

		return nil
	}

	changedIDs := make([]int64, len(changed))

	var units []resultUnit

	for i := range changed {
		changedIDs[i] = changed[i].ID

		if changed[i].PassingHostCount > 0 {
			units = append(units, resultUnit{policyID: changed[i].ID, status: fleet.StatusPass})
		}

		if changed[i].FailingHostCount > 0 {
			units = append(units, resultUnit{policyID: changed[i].ID, status: fleet.StatusFail})
		}
	}

	results, stats := fetchAll(ctx, e.cfg.Workers, units, "policy-results", e.logger,
		func(ctx context.Context, u resultUnit) ([]fleet.PolicyResult, error) {
			return e.api.PolicyHosts(ctx, u.policyID, u.status)
		})

	report.ResultFetchFailed = stats.Failed

	if err := e.store.ReplacePolicyResults(ctx, changedIDs, results); err != nil {
		return err
	}

	report.PoliciesChanged = len(changed)
	report.ResultsChanged = len(results)

	e.logger.Info("policy results synced",
		slog.Int("changed_policies", len(changed)),
		slog.Int("total_policies", len(policies)),
		slog.Int("results", len(results)),
		slog.Int("fetch_failures", stats.Failed),
	)

	return nil
}
