package fleet

// Normalized entity types returned by the client. Wire-level response
// structures are unexported; every response is converted at the ingestion
// boundary into one of these fixed-field records with explicit defaults, so
// a missing optional field never becomes an unchecked null downstream.

// Team is a Fleet team.
type Team struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   string
}

// Host is a Fleet-enrolled host. SeenTime is the host's last-seen timestamp
/// as reported by the server, kept as an opaque string: it is the cheap
// fingerprint compared against the stored value to detect change, never
// parsed or ordered.
type Host struct {
	ID              int64
	Hostname        string
	UUID            string
	Platform        string
	PlatformVersion string
	OsqueryVersion  string
	TeamID          *int64
	TeamName        string
	Status          string
	SeenTime        string
}

// Label is a Fleet label. Hosts carry label associations via HostDetail.
type Label struct {
	ID          int64
	Name        string
	Type        string
	Description string
}

// Policy is a Fleet policy with its aggregate pass/fail host counts.
// The count pair is the policy's change fingerprint. TeamID is nil for
// global policies.
type Policy struct {
	ID               int64
	Name             string
	Description      string
	Resolution       string
	Query            string
	Platform         string
	TeamID           *int64
	PassingHostCount int64
	FailingHostCount int64
}

// HostLabel is one host-to-label association.
type HostLabel struct {
	HostID  int64
	LabelID int64
}

// PolicyStatus is a per-host policy outcome.
type PolicyStatus string

// Policy outcome values stored in policy_results.status.
const (
	StatusPass PolicyStatus = "pass"
	StatusFail PolicyStatus = "fail"
)

// PolicyResult is one host's current outcome for one policy.
type PolicyResult struct {
	PolicyID  int64
	HostID    int64
	Status    PolicyStatus
	CheckedAt string
}

// Wire types mirroring the Fleet API JSON. Optional fields are pointers so
// absence is distinguishable from the zero value.

type teamResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CreatedAt   *string `json:"created_at"`
}

func (t *teamResponse) toTeam() Team {
	return Team{
		ID:          t.ID,
		Name:        t.Name,
		Description: deref(t.Description, ""),
		CreatedAt:   deref(t.CreatedAt, ""),
	}
}

type hostResponse struct {
	ID             int64   `json:"id"`
	Hostname       string  `json:"hostname"`
	UUID           string  `json:"uuid"`
	Platform       string  `json:"platform"`
	OSVersion      string  `json:"os_version"`
	OsqueryVersion *string `json:"osquery_version"`
	TeamID         *int64  `json:"team_id"`
	TeamName       *string `json:"team_name"`
	Status         string  `json:"status"`
	SeenTime       *string `json:"seen_time"`

	// Populated only by the host detail endpoint.
	Labels []labelResponse `json:"labels"`
}

func (h *hostResponse) toHost() Host {
	return Host{
		ID:              h.ID,
		Hostname:        h.Hostname,
		UUID:            h.UUID,
		Platform:        h.Platform,
		PlatformVersion: h.OSVersion,
		OsqueryVersion:  deref(h.OsqueryVersion, ""),
		TeamID:          h.TeamID,
		TeamName:        deref(h.TeamName, ""),
		Status:          h.Status,
		SeenTime:        deref(h.SeenTime, ""),
	}
}

type labelResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	LabelType   *string `json:"label_type"`
	Description *string `json:"description"`
}

// defaultLabelType matches the server default for labels created without an
// explicit type.
const defaultLabelType = "regular"

func (l *labelResponse) toLabel() Label {
	return Label{
		ID:          l.ID,
		Name:        l.Name,
		Type:        deref(l.LabelType, defaultLabelType),
		Description: deref(l.Description, ""),
	}
}

type policyResponse struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	Resolution       *string `json:"resolution"`
	Query            *string `json:"query"`
	Platform         *string `json:"platform"`
	PassingHostCount *int64  `json:"passing_host_count"`
	FailingHostCount *int64  `json:"failing_host_count"`
}

// defaultPolicyPlatform is used when a policy declares no platform scope.
const defaultPolicyPlatform = "all"

func (p *policyResponse) toPolicy(teamID *int64) Policy {
	var pass, fail int64
	if p.PassingHostCount != nil {
		pass = *p.PassingHostCount
	}

	if p.FailingHostCount != nil {
		fail = *p.FailingHostCount
	}

	return Policy{
		ID:               p.ID,
		Name:             p.Name,
		Description:      deref(p.Description, ""),
		Resolution:       deref(p.Resolution, ""),
		Query:            deref(p.Query, ""),
		Platform:         deref(p.Platform, defaultPolicyPlatform),
		TeamID:           teamID,
		PassingHostCount: pass,
		FailingHostCount: fail,
	}
}

// deref returns *p, or def when p is nil.
func deref(p *string, def string) string {
	if p == nil {
		return def
	}

	return *p
}
