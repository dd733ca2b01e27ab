package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/source"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// MaxLimit caps a page, matching the REST API.
const MaxLimit = 100

// listing describes one paged SELECT.
type listing struct {
	table   string
	columns string
	where   []string
	args    []any
	order   string
}

func (l *listing) filter(cond string, arg any) {
	l.args = append(l.args, arg)
	l.where = append(l.where, fmt.Sprintf(cond, len(l.args)))
}

func (l *listing) whereClause() string {
	if len(l.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(l.where, " AND ")
}

// listPage runs the page query and its COUNT(*) concurrently.
func listPage[T any](ctx context.Context, db *DB, l listing, q source.Query) (source.Page[T], error) {
	limit := q.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	skip := max(q.Skip, 0)

	var (
		items []T
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT %d OFFSET %d",
			l.columns, l.table, l.whereClause(), l.order, limit, skip)
		rows, err := db.Query(gctx, sql, l.args...)
		if err != nil {
			return fmt.Errorf("list %s: %w", l.table, err)
		}
		items, err = pgx.CollectRows(rows, pgx.RowToStructByName[T])
		if err != nil {
			return fmt.Errorf("scan %s: %w", l.table, err)
		}
		return nil
	})
	g.Go(func() error {
		sql := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", l.table, l.whereClause())
		if err := db.QueryRow(gctx, sql, l.args...).Scan(&total); err != nil {
			return fmt.Errorf("count %s: %w", l.table, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return source.Page[T]{}, err
	}
	return source.Page[T]{Items: items, Total: total}, nil
}

func requireProject(q source.Query) error {
	if q.ProjectID == "" {
		return errors.New("project_id is required")
	}
	return nil
}

const (
	projectColumns  = "id, name, description, created_by, created_at, updated_at, is_active"
	agentColumns    = "id, project_id, name, prompt, voice_settings, behavior_settings, created_at, updated_at, is_active"
	contactColumns  = "id, project_id, name, phone_number, email, notes, tags, created_at, updated_at"
	campaignColumns = "id, project_id, ai_agent_id, name, description, campaign_type, status, scheduled_at, created_at"
	callColumns     = "id, project_id, campaign_id, contact_id, ai_agent_id, room_name, call_type, phone_number, call_status, " +
		"started_at, answered_at, ended_at, duration_seconds, sentiment_score, call_summary, call_outcome, key_points, action_items, created_at"
)

// Projects lists active projects, newest first. CreatedBy narrows the list
// to one owner when set.
func (db *DB) Projects(ctx context.Context, q source.Query) (source.Page[model.Project], error) {
	l := listing{table: "cb_projects", columns: projectColumns, where: []string{"is_active"}, order: "created_at DESC, id"}
	if q.CreatedBy != "" {
		l.filter("created_by = $%d", q.CreatedBy)
	}
	return listPage[model.Project](ctx, db, l, q)
}

func (db *DB) Agents(ctx context.Context, q source.Query) (source.Page[model.Agent], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Agent]{}, err
	}
	l := listing{table: "cb_agents", columns: agentColumns, where: []string{"is_active"}, order: "created_at DESC, id"}
	l.filter("project_id = $%d", q.ProjectID)
	return listPage[model.Agent](ctx, db, l, q)
}

func (db *DB) Contacts(ctx context.Context, q source.Query) (source.Page[model.Contact], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Contact]{}, err
	}
	l := listing{table: "cb_contacts", columns: contactColumns, order: "name, id"}
	l.filter("project_id = $%d", q.ProjectID)
	return listPage[model.Contact](ctx, db, l, q)
}

func (db *DB) Campaigns(ctx context.Context, q source.Query) (source.Page[model.Campaign], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Campaign]{}, err
	}
	l := listing{table: "cb_campaigns", columns: campaignColumns, order: "created_at DESC, id"}
	l.filter("project_id = $%d", q.ProjectID)
	if q.Status != "" {
		l.filter("status = $%d", q.Status)
	}
	return listPage[model.Campaign](ctx, db, l, q)
}

// Calls lists a project's calls, most recent first.
func (db *DB) Calls(ctx context.Context, q source.Query) (source.Page[model.Call], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Call]{}, err
	}
	l := listing{table: "cb_calls", columns: callColumns, order: "started_at DESC, id"}
	l.filter("project_id = $%d", q.ProjectID)
	if q.Status != "" {
		l.filter("call_status = $%d", q.Status)
	}
	if q.ContactID != "" {
		l.filter("contact_id = $%d", q.ContactID)
	}
	if q.CampaignID != "" {
		l.filter("campaign_id = $%d", q.CampaignID)
	}
	if q.CallType != "" {
		l.filter("call_type = $%d", q.CallType)
	}
	return listPage[model.Call](ctx, db, l, q)
}
