package fleet

import (
	"context"
	"fmt"
	"log/slog"
)

// Teams fetches all teams. The collection is small enough that the server
// returns it unpaginated.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var tr struct {
		Teams []teamResponse `json:"teams"`
	}

	if err := c.get(ctx, "/teams", &tr); err != nil {
		return nil, err
	}

	teams := make([]Team, 0, len(tr.Teams))
	for i := range tr.Teams {
		teams = append(teams, tr.Teams[i].toTeam())
	}

	return teams, nil
}

// Labels fetches all labels. Small collection, unpaginated.
func (c *Client) Labels(ctx context.Context) ([]Label, error) {
	var lr struct {
		Labels []labelResponse `json:"labels"`
	}

	if err := c.get(ctx, "/labels", &lr); err != nil {
		return nil, err
	}

	labels := make([]Label, 0, len(lr.Labels))
	for i := range lr.Labels {
		labels = append(labels, lr.Labels[i].toLabel())
	}

	return labels, nil
}

// HostsPage fetches one page of the host collection. An empty slice signals
// the end of the collection. Pages are zero-indexed.
func (c *Client) HostsPage(ctx context.Context, page, perPage int) ([]Host, error) {
	var hr struct {
		Hosts []hostResponse `json:"hosts"`
	}

	path := fmt.Sprintf("/hosts?per_page=%d&page=%d", perPage, page)
	if err := c.get(ctx, path, &hr); err != nil {
		return nil, err
	}

	hosts := make([]Host, 0, len(hr.Hosts))
	for i := range hr.Hosts {
		hosts = append(hosts, hr.Hosts[i].toHost())
	}

	c.logger.Debug("fetched host page",
		slog.Int("page", page),
		slog.Int("count", len(hosts)),
	)

	return hosts, nil
}

// HostLabels fetches the label associations for one host via the host
// detail endpoint.
func (c *Client) HostLabels(ctx context.Context, hostID int64) ([]HostLabel, error) {
	var dr struct {
		Host hostResponse `json:"host"`
	}

	path := fmt.Sprintf("/hosts/%d", hostID)
	if err := c.get(ctx, path, &dr); err != nil {
		return nil, err
	}

	assocs := make([]HostLabel, 0, len(dr.Host.Labels))
	for i := range dr.Host.Labels {
		assocs = append(assocs, HostLabel{HostID: hostID, LabelID: dr.Host.Labels[i].ID})
	}

	return assocs, nil
}
