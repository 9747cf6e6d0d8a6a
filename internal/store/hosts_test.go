package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
)

func TestUpsertHostsAndSeenTimes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hosts := []fleet.Host{
		makeHost(10, "web-1", "2026-08-24T09:00:00Z", int64p(1)),
		makeHost(11, "web-2", "", nil),
	}

	require.NoError(t, s.UpsertHosts(ctx, hosts))

	seen, err := s.HostSeenTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{10: "2026-08-24T09:00:00Z", 11: ""}, seen)

	// Re-upsert with a moved fingerprint updates in place.
	hosts[0].SeenTime = "2026-08-24T10:00:00Z"
	require.NoError(t, s.UpsertHosts(ctx, hosts))

	seen, err = s.HostSeenTimes(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Equal(t, "2026-08-24T10:00:00Z", seen[10])
}

func TestDeleteStaleHostsCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertHosts(ctx, []fleet.Host{
		makeHost(10, "web-1", "t1", nil),
		makeHost(11, "web-2", "t1", nil),
	}))

	require.NoError(t, s.ReplaceHostLabels(ctx, []int64{10, 11}, []fleet.HostLabel{
		{HostID: 10, LabelID: 6},
		{HostID: 11, LabelID: 6},
	}))

	require.NoError(t, s.ReplacePolicyResults(ctx, []int64{1}, []fleet.PolicyResult{
		{PolicyID: 1, HostID: 10, Status: fleet.StatusPass, CheckedAt: "t1"},
		{PolicyID: 1, HostID: 11, Status: fleet.StatusFail, CheckedAt: "t1"},
	}))

	// Host 11 vanished upstream.
	removed, err := s.DeleteStaleHosts(ctx, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	seen, err := s.HostSeenTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{10: "t1"}, seen)

	// No orphaned dependent rows remain.
	var labelCount, resultCount int
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM host_labels WHERE host_id = 11").Scan(&labelCount))
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM policy_results WHERE host_id = 11").Scan(&resultCount))
	assert.Zero(t, labelCount)
	assert.Zero(t, resultCount)

	// Surviving host keeps its rows.
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM policy_results WHERE host_id = 10").Scan(&resultCount))
	assert.Equal(t, 1, resultCount)
}

func TestDeleteStaleHostsNoneStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertHosts(ctx, []fleet.Host{makeHost(10, "web-1", "t1", nil)}))

	removed, err := s.DeleteStaleHosts(ctx, []int64{10})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReplaceHostLabelsScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceHostLabels(ctx, []int64{10, 11}, []fleet.HostLabel{
		{HostID: 10, LabelID: 6},
		{HostID: 11, LabelID: 7},
	}))

	// Replace labels for host 10 only; host 11 must keep its row.
	require.NoError(t, s.ReplaceHostLabels(ctx, []int64{10}, []fleet.HostLabel{
		{HostID: 10, LabelID: 9},
	}))

	rows, err := s.db.QueryContext(ctx, "SELECT host_id, label_id FROM host_labels ORDER BY host_id")
	require.NoError(t, err)
	defer rows.Close()

	var got []fleet.HostLabel

	for rows.Next() {
		var hl fleet.HostLabel
		require.NoError(t, rows.Scan(&hl.HostID, &hl.LabelID))
		got = append(got, hl)
	}

	require.NoError(t, rows.Err())
	assert.Equal(t, []fleet.HostLabel{{HostID: 10, LabelID: 9}, {HostID: 11, LabelID: 7}}, got)
}

func TestReplaceHostLabelsDuplicatePair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The same association appearing twice in one batch is absorbed.
	require.NoError(t, s.ReplaceHostLabels(ctx, []int64{10}, []fleet.HostLabel{
		{HostID: 10, LabelID: 6},
		{HostID: 10, LabelID: 6},
	}))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM host_labels").Scan(&count))
	assert.Equal(t, 1, count)
}
