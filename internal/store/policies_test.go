package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
)

func strp(s string) *string { return &s }

func TestUpsertPolicies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []PolicyRow{
		{
			Policy: fleet.Policy{
				ID: 1, Name: "CIS - 1.1 - Ensure updates", Description: "d",
				Resolution: "r", Query: "SELECT 1;", Platform: "darwin",
			},
			CISControl: strp("1.1"),
		},
		{
			Policy: fleet.Policy{ID: 2, Name: "Custom check", Platform: "all"},
		},
	}

	require.NoError(t, s.UpsertPolicies(ctx, rows))

	var control sql.NullString
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT cis_control FROM cis_policies WHERE policy_id = 1").Scan(&control))
	assert.Equal(t, "1.1", control.String)

	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT cis_control FROM cis_policies WHERE policy_id = 2").Scan(&control))
	assert.False(t, control.Valid, "no token extracted means NULL")

	// Schema defaults fill the fields the API does not report.
	var category, severity string
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT category, severity FROM cis_policies WHERE policy_id = 1").Scan(&category, &severity))
	assert.Equal(t, "General", category)
	assert.Equal(t, "Medium", severity)

	// Rename updates in place.
	rows[1].Policy.Name = "Custom check v2"
	require.NoError(t, s.UpsertPolicies(ctx, rows))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cis_policies").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestPolicyResultCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	counts, err := s.PolicyResultCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1, 2}, []fleet.PolicyResult{
		{PolicyID: 1, HostID: 10, Status: fleet.StatusPass, CheckedAt: "t1"},
		{PolicyID: 1, HostID: 11, Status: fleet.StatusPass, CheckedAt: "t1"},
		{PolicyID: 1, HostID: 12, Status: fleet.StatusFail, CheckedAt: "t1"},
		{PolicyID: 2, HostID: 10, Status: fleet.StatusFail, CheckedAt: "t1"},
	}))

	counts, err = s.PolicyResultCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]PolicyCounts{
		1: {Pass: 2, Fail: 1},
		2: {Pass: 0, Fail: 1},
	}, counts)
}

func TestReplacePolicyResultsFullReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1}, []fleet.PolicyResult{
		{PolicyID: 1, HostID: 10, Status: fleet.StatusPass, CheckedAt: "t1"},
		{PolicyID: 1, HostID: 11, Status: fleet.StatusFail, CheckedAt: "t1"},
	}))

	// Replace clears the old rows for the policy before inserting.
	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1}, []fleet.PolicyResult{
		{PolicyID: 1, HostID: 10, Status: fleet.StatusFail, CheckedAt: "t2"},
	}))

	counts, err := s.PolicyResultCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]PolicyCounts{1: {Pass: 0, Fail: 1}}, counts)

	var status, checkedAt string
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT status, checked_at FROM policy_results WHERE policy_id = 1 AND host_id = 10").
		Scan(&status, &checkedAt))
	assert.Equal(t, "fail", status)
	assert.Equal(t, "t2", checkedAt)
}

func TestReplacePolicyResultsUniquePair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A host reported in both the passing and failing sweep of one cycle
	// keeps a single row (the later insert wins).
	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1}, []fleet.PolicyResult{
		{PolicyID: 1, HostID: 10, Status: fleet.StatusPass, CheckedAt: "t1"},
		{PolicyID: 1, HostID: 10, Status: fleet.StatusFail, CheckedAt: "t1"},
	}))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM policy_results").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestReplacePolicyResultsScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1, 2}, []fleet.PolicyResult{
		{PolicyID: 1, HostID: 10, Status: fleet.StatusPass, CheckedAt: "t1"},
		{PolicyID: 2, HostID: 10, Status: fleet.StatusFail, CheckedAt: "t1"},
	}))

	// Replacing policy 1 must not touch policy 2's rows.
	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1}, nil))

	counts, err := s.PolicyResultCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]PolicyCounts{2: {Pass: 0, Fail: 1}}, counts)
}
