package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

func TestCapacityContribution(t *testing.T) {
	tests := []struct {
		name          string
		cap           userCapacity
		includeActive bool
		cloudOnly     bool
		want          int
	}{
		{"idle user, short queue", userCapacity{queuedReady: 3}, false, false, 3},
		{"idle user, long queue capped", userCapacity{queuedReady: 9}, false, false, 5},
		{"partially busy", userCapacity{queuedReady: 9, inProgressCount: 3}, false, false, 2},
		{"at cap", userCapacity{queuedReady: 3, inProgressCount: 5}, false, false, 0},
		{"over cap never negative", userCapacity{queuedReady: 3, inProgressCount: 7}, false, false, 0},
		{"include active sums then caps", userCapacity{queuedReady: 3, inProgressCount: 5, cloudInProgressCount: 5}, true, true, 5},
		{"include active under cap", userCapacity{queuedReady: 1, inProgressCount: 2, cloudInProgressCount: 2}, true, true, 3},
		{"cloud-only ignores local claims", userCapacity{queuedReady: 2, inProgressCount: 4, cloudInProgressCount: 1}, true, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capacityContribution(tt.cap, tt.includeActive, tt.cloudOnly))
		})
	}
}

// User U has 5 in-progress tasks and 3 queued: count(false) is 0,
// count(true) is capped at 5.
func TestCountEligibleServiceAtCapacity(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	rows := make([]repository.AnalysisRow, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, repository.AnalysisRow{
			TaskID:               uuid.New(),
			UserID:               userID,
			Credits:              10,
			AllowsCloud:          true,
			AllowsLocal:          true,
			RunType:              valueobject.RunTypeGPU,
			DependencySatisfied:  true,
			InProgressCount:      5,
			CloudInProgressCount: 5,
		})
	}
	engine := NewCountEngine(&memAnalysisRepo{
		rows: rows,
		users: []repository.UserEligibility{{
			UserID: userID, Credits: 10, AllowsCloud: true, AllowsLocal: true,
			InProgressCount: 5, CloudInProgressCount: 5,
		}},
	})

	n, err := engine.CountEligibleService(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = engine.CountEligibleService(ctx, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

// A user with in-progress work but an empty queue still contributes to the
// include_active total.
func TestCountEligibleServiceIncludesQueuelessUsers(t *testing.T) {
	ctx := context.Background()
	engine := NewCountEngine(&memAnalysisRepo{
		users: []repository.UserEligibility{{
			UserID: uuid.New(), Credits: 5, AllowsCloud: true,
			InProgressCount: 2, CloudInProgressCount: 2,
		}},
	})

	n, err := engine.CountEligibleService(ctx, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = engine.CountEligibleService(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountEligibleUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine := NewCountEngine(&memAnalysisRepo{
		rows: []repository.AnalysisRow{
			{TaskID: uuid.New(), UserID: userID, Credits: 3, AllowsLocal: true, AllowsCloud: true, RunType: valueobject.RunTypeGPU, DependencySatisfied: true, InProgressCount: 1},
			{TaskID: uuid.New(), UserID: userID, Credits: 3, AllowsLocal: true, AllowsCloud: true, RunType: valueobject.RunTypeAPI, DependencySatisfied: true, InProgressCount: 1},
		},
		users: []repository.UserEligibility{{UserID: userID, Credits: 3, AllowsCloud: true, AllowsLocal: true, InProgressCount: 1}},
	})

	n, err := engine.CountEligibleUser(ctx, userID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	gpu := valueobject.RunTypeGPU
	n, err = engine.CountEligibleUser(ctx, userID, false, &gpu)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = engine.CountEligibleUser(ctx, uuid.New(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unknown or ineligible user contributes zero")
}

func TestCountBreakdownServicePrecedence(t *testing.T) {
	ctx := context.Background()

	row := func(mutate func(*repository.AnalysisRow)) repository.AnalysisRow {
		r := repository.AnalysisRow{
			TaskID: uuid.New(), UserID: uuid.New(), Credits: 10,
			AllowsCloud: true, AllowsLocal: true,
			RunType: valueobject.RunTypeGPU, DependencySatisfied: true,
		}
		mutate(&r)
		return r
	}

	engine := NewCountEngine(&memAnalysisRepo{rows: []repository.AnalysisRow{
		row(func(*repository.AnalysisRow) {}),
		row(func(r *repository.AnalysisRow) { r.Credits = 0 }), // excluded entirely
		row(func(r *repository.AnalysisRow) { r.AllowsCloud = false; r.DependencySatisfied = false }),
		row(func(r *repository.AnalysisRow) { r.DependencySatisfied = false; r.InProgressCount = 5 }),
		row(func(r *repository.AnalysisRow) { r.InProgressCount = 5 }),
	}})

	b, err := engine.CountBreakdownService(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Breakdown{
		ClaimableNow:      1,
		BlockedBySettings: 1, // settings checked before deps
		BlockedByDeps:     1, // deps checked before capacity
		BlockedByCapacity: 1,
	}, b)
}

func TestAnalyzeService(t *testing.T) {
	ctx := context.Background()
	busy := uuid.New()
	idle := uuid.New()

	engine := NewCountEngine(&memAnalysisRepo{rows: []repository.AnalysisRow{
		{TaskID: uuid.New(), UserID: idle, Credits: 10, AllowsCloud: true, RunType: valueobject.RunTypeGPU, DependencySatisfied: true},
		{TaskID: uuid.New(), UserID: idle, Credits: 10, AllowsCloud: true, RunType: valueobject.RunTypeGPU, DependencySatisfied: false},
		{TaskID: uuid.New(), UserID: busy, Credits: 10, AllowsCloud: true, RunType: valueobject.RunTypeGPU, DependencySatisfied: true, InProgressCount: 5},
	}})

	a, err := engine.AnalyzeService(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 1, a.Eligible)
	assert.Equal(t, 1, a.RejectionCounts[valueobject.RejectionDependencyBlocked])
	assert.Equal(t, 1, a.RejectionCounts[valueobject.RejectionConcurrencyLimit])
	require.Len(t, a.PerUser, 2)

	for _, stat := range a.PerUser {
		switch stat.UserID {
		case busy:
			assert.True(t, stat.AtLimit)
			assert.Equal(t, 1, stat.QueuedCount)
		case idle:
			assert.False(t, stat.AtLimit)
			assert.Equal(t, 2, stat.QueuedCount)
		default:
			t.Fatalf("unexpected user %s", stat.UserID)
		}
	}
}
