package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type policiesResponse struct {
	Policies []policyResponse `json:"policies"`
}

// GlobalPolicies fetches policies that apply to every host. Older Fleet
// servers serve them under /global/policies and return 404 on the modern
// path, so a 404 falls back to the legacy endpoint.
func (c *Client) GlobalPolicies(ctx context.Context) ([]Policy, error) {
	var pr policiesResponse

	err := c.get(ctx, "/policies", &pr)
	if errors.Is(err, ErrNotFound) {
		err = c.get(ctx, "/global/policies", &pr)
	}

	if err != nil {
		return nil, err
	}

	policies := make([]Policy, 0, len(pr.Policies))
	for i := range pr.Policies {
		policies = append(policies, pr.Policies[i].toPolicy(nil))
	}

	return policies, nil
}

// TeamPolicies fetches the policies scoped to one team.
func (c *Client) TeamPolicies(ctx context.Context, teamID int64) ([]Policy, error) {
	var pr policiesResponse

	path := fmt.Sprintf("/teams/%d/policies", teamID)
	if err := c.get(ctx, path, &pr); err != nil {
		return nil, err
	}

	policies := make([]Policy, 0, len(pr.Policies))
	for i := range pr.Policies {
		tid := teamID
		policies = append(policies, pr.Policies[i].toPolicy(&tid))
	}

	return policies, nil
}

// PoliciesAll fetches global and per-team policies, deduplicated by policy
// ID. Global entries win: a team policy never overrides an already-seen
// global entry. A failing team fetch is logged and skipped so one team
// cannot sink the whole policy phase.
func (c *Client) PoliciesAll(ctx context.Context, teams []Team) ([]Policy, error) {
	seen := make(map[int64]struct{})

	global, err := c.GlobalPolicies(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]Policy, 0, len(global))

	for i := range global {
		all = append(all, global[i])
		seen[global[i].ID] = struct{}{}
	}

	for i := range teams {
		teamPolicies, err := c.TeamPolicies(ctx, teams[i].ID)
		if err != nil {
			c.logger.Warn("fetching team policies failed",
				slog.Int64("team_id", teams[i].ID),
				slog.String("team", teams[i].Name),
				slog.String("error", err.Error()),
			)

			continue
		}

		for j := range teamPolicies {
			if _, ok := seen[teamPolicies[j].ID]; ok {
				continue
			}

			all = append(all, teamPolicies[j])
			seen[teamPolicies[j].ID] = struct{}{}
		}
	}

	return all, nil
}

// PolicyHosts fetches the hosts currently reporting the given status for a
// policy, as PolicyResult rows stamped with the fetch time. The server
// filter parameter uses "passing"/"failing"; rows store "pass"/"fail".
func (c *Client) PolicyHosts(ctx context.Context, policyID int64, status PolicyStatus) ([]PolicyResult, error) {
	response := "failing"
	if status == StatusPass {
		response = "passing"
	}

	var hr struct {
		Hosts []hostResponse `json:"hosts"`
	}

	path := fmt.Sprintf("/hosts?policy_id=%d&policy_response=%s", policyID, response)
	if err := c.get(ctx, path, &hr); err != nil {
		return nil, err
	}

	checkedAt := time.Now().Format(time.RFC3339)

	results := make([]PolicyResult, 0, len(hr.Hosts))
	for i := range hr.Hosts {
		results = append(results, PolicyResult{
			PolicyID:  policyID,
			HostID:    hr.Hosts[i].ID,
			Status:    status,
			CheckedAt: checkedAt,
		})
	}

	return results, nil
}
