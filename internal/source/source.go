// Package source defines how callboard fetches pages of records and
// applies row actions, independent of whether the records come from the
// REST API or straight from PostgreSQL.
package source

import (
	"context"

	"github.com/imgajeed76/callboard/internal/model"
)

// Query selects one page of a collection.
type Query struct {
	ProjectID string // required for project-scoped kinds
	CreatedBy string // projects only
	Status    string // campaigns and calls only

	// calls only
	ContactID  string
	CampaignID string
	CallType   string

	Skip  int
	Limit int
}

// Page is one fetched slice of a collection. Total is the size of the whole
// collection, or -1 when the backend could not say.
type Page[T any] struct {
	Items []T
	Total int
}

// TotalOrInferred returns Total, or a lower bound inferred from the page
// when the backend did not report one: a short page ends the collection,
// a full page implies at least one more record. An empty page after the
// first says nothing about where the collection ends, so it yields -1.
func (p Page[T]) TotalOrInferred(q Query) int {
	if p.Total >= 0 {
		return p.Total
	}
	if len(p.Items) == 0 && q.Skip > 0 {
		return -1
	}
	n := q.Skip + len(p.Items)
	if q.Limit > 0 && len(p.Items) >= q.Limit {
		n++
	}
	return n
}

// Source loads records and performs mutations.
type Source interface {
	Projects(ctx context.Context, q Query) (Page[model.Project], error)
	Agents(ctx context.Context, q Query) (Page[model.Agent], error)
	Contacts(ctx context.Context, q Query) (Page[model.Contact], error)
	Campaigns(ctx context.Context, q Query) (Page[model.Campaign], error)
	Calls(ctx context.Context, q Query) (Page[model.Call], error)

	ProjectStats(ctx context.Context, projectID string) (model.ProjectStats, error)
	CampaignStats(ctx context.Context, campaignID string) (model.CampaignStats, error)
	// ProjectSummary reports the project's calls started in the last days.
	ProjectSummary(ctx context.Context, projectID string, days int) (model.ProjectSummary, error)

	// Apply performs op on the record of kind with the given id.
	Apply(ctx context.Context, kind model.Kind, id string, op model.Op) error

	Ping(ctx context.Context) error
	Close()
}

// Fetcher returns a Source method for one kind, bound to a record type.
type Fetcher[T any] func(ctx context.Context, q Query) (Page[T], error)
