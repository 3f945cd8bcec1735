// Package service implements the scheduler's engines: dependency
// and eligibility evaluation, the claim engine, the count/analysis engine,
// the completion engine, and the shot-link/timeline engine. Each engine is
// a thin orchestrator over internal/domain/repository - the atomic,
// contention-safe work happens in the repository layer's SQL; these types
// compose that with cross-cutting policy (rejection-reason precedence,
// idempotency, denormalization) that doesn't belong in a single query.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// MaxUserConcurrency is the per-user in-progress cap.
const MaxUserConcurrency = 5

// DependencySatisfied implements the dependency evaluator: a
// task's dependency set passes when empty, or when every referenced task
// exists and is Complete. A dangling reference is NOT satisfied - this is
// the refined rule; the older "missing = satisfied" behavior is
// deprecated.
func DependencySatisfied(ctx context.Context, tasks repository.TaskRepository, dependantOn []uuid.UUID) (bool, error) {
	if len(dependantOn) == 0 {
		return true, nil
	}
	found, err := tasks.GetByIDs(ctx, dependantOn)
	if err != nil {
		return false, err
	}
	if len(found) != len(dependantOn) {
		return false, nil
	}
	for _, t := range found {
		if t.Status != valueobject.TaskStatusComplete {
			return false, nil
		}
	}
	return true, nil
}

// ClassifyRejection implements the eligibility evaluator's precedence rule
//: a queued task failing eligibility maps to exactly one
// rejection reason, checked in order no_credits -> cloud_disabled/
// local_disabled -> concurrency_limit -> dependency_blocked ->
// wrong_run_type. ok is true iff the task is claimable-now.
func ClassifyRejection(row repository.AnalysisRow, serviceMode bool, runType *valueobject.RunType) (reason valueobject.RejectionReason, ok bool) {
	if row.Credits <= 0 {
		return valueobject.RejectionNoCredits, false
	}

	flag, disabledReason := row.AllowsCloud, valueobject.RejectionCloudDisabled
	if !serviceMode {
		flag, disabledReason = row.AllowsLocal, valueobject.RejectionLocalDisabled
	}
	if !flag {
		return disabledReason, false
	}

	if !row.IsOrchestratorType && row.InProgressCount >= MaxUserConcurrency {
		return valueobject.RejectionConcurrencyLimit, false
	}

	if !row.DependencySatisfied {
		return valueobject.RejectionDependencyBlocked, false
	}

	if runType != nil && row.RunType != *runType {
		return valueobject.RejectionWrongRunType, false
	}

	return "", true
}
