package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// CountEngine implements the count/analysis engine: capacity-
// bounded counts and rejection-reason analysis. It never mutates state.
type CountEngine struct {
	analysis repository.AnalysisRepository
}

// NewCountEngine creates a new count/analysis engine.
func NewCountEngine(analysis repository.AnalysisRepository) *CountEngine {
	return &CountEngine{analysis: analysis}
}

// userCapacity accumulates one user's Q(u) (dependency-ready queued count,
// run-type filtered) alongside the I(u) values the read model already
// carries.
type userCapacity struct {
	queuedReady          int
	inProgressCount      int
	cloudInProgressCount int
}

// capacityContribution is the per-user capacity formula:
//
//	include_active=false: max(0, min(5-I(u), Q(u)))
//	include_active=true:  min(5, I(u)+Q(u))
func capacityContribution(c userCapacity, includeActive, cloudOnly bool) int {
	inProgress := c.inProgressCount
	if cloudOnly {
		inProgress = c.cloudInProgressCount
	}
	if includeActive {
		total := inProgress + c.queuedReady
		if total > MaxUserConcurrency {
			total = MaxUserConcurrency
		}
		return total
	}
	remaining := MaxUserConcurrency - inProgress
	if remaining < 0 {
		remaining = 0
	}
	if c.queuedReady < remaining {
		return c.queuedReady
	}
	return remaining
}

// CountEligibleService implements count_eligible_service(include_active?,
// run_type?): the sum of capacity contributions across every credit- and
// cloud-eligible user. In service mode with include_active true, only
// cloud-claimed (non-null worker_id) in-progress tasks count toward I(u),
// preventing local user-claimed tasks from inflating cloud-scaler signals.
func (e *CountEngine) CountEligibleService(ctx context.Context, includeActive bool, runType *valueobject.RunType) (int, error) {
	capacities, err := e.buildCapacities(ctx, true, runType)
	if err != nil {
		return 0, fmt.Errorf("count eligible service: %w", err)
	}
	total := 0
	for _, c := range capacities {
		total += capacityContribution(c, includeActive, includeActive)
	}
	return total, nil
}

// CountEligibleUser implements count_eligible_user(user_id, include_active?,
// run_type?): a single user's capacity contribution. Returns 0 for a
// credit- or capability-ineligible user, matching the service variant's
// "eligible user" gate rather than erroring.
func (e *CountEngine) CountEligibleUser(ctx context.Context, userID uuid.UUID, includeActive bool, runType *valueobject.RunType) (int, error) {
	capacities, err := e.buildCapacities(ctx, false, runType)
	if err != nil {
		return 0, fmt.Errorf("count eligible user: %w", err)
	}
	c, ok := capacities[userID]
	if !ok {
		return 0, nil
	}
	return capacityContribution(c, includeActive, false), nil
}

// buildCapacities merges ListEligibleUsers (every credit+capability
// eligible user, including those with zero queued tasks) with the
// dependency- and run-type-filtered queued count per user.
func (e *CountEngine) buildCapacities(ctx context.Context, serviceMode bool, runType *valueobject.RunType) (map[uuid.UUID]userCapacity, error) {
	eligible, err := e.analysis.ListEligibleUsers(ctx, serviceMode)
	if err != nil {
		return nil, err
	}
	capacities := make(map[uuid.UUID]userCapacity, len(eligible))
	for _, u := range eligible {
		capacities[u.UserID] = userCapacity{inProgressCount: u.InProgressCount, cloudInProgressCount: u.CloudInProgressCount}
	}

	rows, err := e.analysis.ListQueuedAnalysisRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		c, ok := capacities[row.UserID]
		if !ok {
			continue // not credit/capability eligible; contributes nothing
		}
		if !row.DependencySatisfied {
			continue
		}
		if runType != nil && row.RunType != *runType {
			continue
		}
		c.queuedReady++
		capacities[row.UserID] = c
	}
	return capacities, nil
}

// Breakdown is the partition of queued tasks count_breakdown_service
// reports.
type Breakdown struct {
	ClaimableNow      int
	BlockedByDeps     int
	BlockedByCapacity int
	BlockedBySettings int
}

// CountBreakdownService implements count_breakdown_service(run_type?): a
// 4-tuple partition of queued tasks into {claimable_now, blocked_by_capacity,
// blocked_by_deps, blocked_by_settings}. Credit-less users are excluded
// entirely. Precedence: credits -> cloud-flag -> deps -> capacity ->
// claimable (note this differs from the single-reason rejection order
// used by AnalyzeService, which checks capacity before dependencies).
func (e *CountEngine) CountBreakdownService(ctx context.Context, runType *valueobject.RunType) (Breakdown, error) {
	rows, err := e.analysis.ListQueuedAnalysisRows(ctx)
	if err != nil {
		return Breakdown{}, fmt.Errorf("count breakdown service: %w", err)
	}

	var b Breakdown
	for _, row := range rows {
		if row.Credits <= 0 {
			continue
		}
		if runType != nil && row.RunType != *runType {
			continue
		}
		switch {
		case !row.AllowsCloud:
			b.BlockedBySettings++
		case !row.DependencySatisfied:
			b.BlockedByDeps++
		case !row.IsOrchestratorType && row.InProgressCount >= MaxUserConcurrency:
			b.BlockedByCapacity++
		default:
			b.ClaimableNow++
		}
	}
	return b, nil
}

// UserStat is one user's standing in the analysis breakdown.
type UserStat struct {
	UserID      uuid.UUID
	Credits     int64
	QueuedCount int
	InProgress  int
	AllowsCloud bool
	AtLimit     bool
}

// Analysis is the structured output of analyze_service.
type Analysis struct {
	Total           int
	Eligible        int
	RejectionCounts map[valueobject.RejectionReason]int
	PerUser         []UserStat
}

// AnalyzeService implements analyze_service(run_type?): total queued tasks,
// how many are claimable now, a per-rejection-reason tally, and per-user
// statistics. It takes no include_active option.
func (e *CountEngine) AnalyzeService(ctx context.Context, runType *valueobject.RunType) (Analysis, error) {
	rows, err := e.analysis.ListQueuedAnalysisRows(ctx)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze service: %w", err)
	}

	analysis := Analysis{RejectionCounts: make(map[valueobject.RejectionReason]int)}
	perUser := make(map[uuid.UUID]*UserStat)

	for _, row := range rows {
		analysis.Total++
		stat, ok := perUser[row.UserID]
		if !ok {
			stat = &UserStat{
				UserID:      row.UserID,
				Credits:     row.Credits,
				AllowsCloud: row.AllowsCloud,
				InProgress:  row.InProgressCount,
				AtLimit:     !row.IsOrchestratorType && row.InProgressCount >= MaxUserConcurrency,
			}
			perUser[row.UserID] = stat
		}
		stat.QueuedCount++

		if reason, ok := ClassifyRejection(row, true, runType); ok {
			analysis.Eligible++
		} else {
			analysis.RejectionCounts[reason]++
		}
	}

	analysis.PerUser = make([]UserStat, 0, len(perUser))
	for _, stat := range perUser {
		analysis.PerUser = append(analysis.PerUser, *stat)
	}
	return analysis, nil
}
