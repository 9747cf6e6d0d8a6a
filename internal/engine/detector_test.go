package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetmirror/fleetmirror/internal/fleet"
	"github.com/fleetmirror/fleetmirror/internal/store"
)

func TestChangedHosts(t *testing.T) {
	stored := map[int64]string{
		10: "2026-08-24T09:00:00Z",
		11: "2026-08-24T09:00:00Z",
	}

	hosts := []fleet.Host{
		{ID: 10, SeenTime: "2026-08-24T09:00:00Z"}, // unchanged
		{ID: 11, SeenTime: "2026-08-24T10:00:00Z"}, // fingerprint moved
		{ID: 12, SeenTime: "2026-08-24T10:00:00Z"}, // new host
	}

	changed := changedHosts(hosts, stored)
	assert.Len(t, changed, 2)
	assert.Equal(t, int64(11), changed[0].ID)
	assert.Equal(t, int64(12), changed[1].ID)
}

func TestChangedHostsEmptyStore(t *testing.T) {
	hosts := []fleet.Host{{ID: 10, SeenTime: "t1"}, {ID: 11, SeenTime: "t2"}}

	// Everything is new on the first run.
	changed := changedHosts(hosts, map[int64]string{})
	assert.Len(t, changed, 2)
}

func TestChangedHostsEmptySeenTimeStable(t *testing.T) {
	// A host that never reports seen_time stays unchanged once stored.
	stored := map[int64]string{10: ""}
	changed := changedHosts([]fleet.Host{{ID: 10}}, stored)
	assert.Empty(t, changed)
}

func TestChangedPolicies(t *testing.T) {
	stored := map[int64]store.PolicyCounts{
		1: {Pass: 3, Fail: 1},
		2: {Pass: 5, Fail: 0},
	}

	policies := []fleet.Policy{
		{ID: 1, PassingHostCount: 3, FailingHostCount: 2}, // fail count moved
		{ID: 2, PassingHostCount: 5, FailingHostCount: 0}, // unchanged
		{ID: 3, PassingHostCount: 0, FailingHostCount: 0}, // new, still (0,0)
		{ID: 4, PassingHostCount: 1, FailingHostCount: 0}, // new with results
	}

	changed := changedPolicies(policies, stored)
	assert.Len(t, changed, 2)
	assert.Equal(t, int64(1), changed[0].ID)
	assert.Equal(t, int64(4), changed[1].ID)
}

func TestChangedPoliciesOffsettingFlipsUndetected(t *testing.T) {
	// One host flipping pass→fail while another flips fail→pass leaves the
	// count pair unchanged, so the policy is classified unchanged. This is
	// the documented cost bound of count-pair fingerprinting.
	stored := map[int64]store.PolicyCounts{1: {Pass: 1, Fail: 1}}
	policies := []fleet.Policy{{ID: 1, PassingHostCount: 1, FailingHostCount: 1}}

	assert.Empty(t, changedPolicies(policies, stored))
}
