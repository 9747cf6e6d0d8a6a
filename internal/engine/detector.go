// Package engine implements the differential sync pass: change detection
// against stored fingerprints, bounded concurrent detail fetches, ordered
// phase execution with per-phase commits, daily compliance rollups, and the
// run-record lifecycle.
package engine

import (
	"github.com/fleetmirror/fleetmirror/internal/fleet"
	"github.com/fleetmirror/fleetmirror/internal/store"
)

// changedHosts returns the fetched hosts whose seen-time fingerprint
// differs from the stored last_seen value. A host absent from the store is
// new and therefore changed.
func changedHosts(hosts []fleet.Host, stored map[int64]string) []fleet.Host {
	var changed []fleet.Host

	for i := range hosts {
		if hosts[i].SeenTime != stored[hosts[i].ID] {
			changed = append(changed, hosts[i])
		}
	}

	return changed
}

// changedPolicies returns the policies whose reported (pass, fail) count
// pair differs from the aggregate stored in policy_results. A policy with
// no stored rows compares against (0, 0).
//
// Known limitation, kept deliberately: one host flipping pass→fail while
// another flips fail→pass leaves both counts unchanged, so the policy is
// classified unchanged and its stale per-host rows survive until the counts
// next move. The API exposes no cheaper signal, and re-fetching every
// policy's host list each run is exactly the cost this comparison avoids.
func changedPolicies(policies []fleet.Policy, stored map[int64]store.PolicyCounts) []fleet.Policy {
	var changed []fleet.Policy

	for i := range policies {
		p := &policies[i]

		counts := stored[p.ID]
		if p.PassingHostCount != counts.Pass || p.FailingHostCount != counts.Fail {
			changed = append(changed, *p)
		}
	}

	return changed
}
