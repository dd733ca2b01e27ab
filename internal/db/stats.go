package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// count runs a COUNT(*) query into dst.
func (db *DB) count(ctx context.Context, dst *int, sql string, args ...any) func() error {
	return func() error {
		if err := db.QueryRow(ctx, sql, args...).Scan(dst); err != nil {
			return fmt.Errorf("%s: %w", sql, err)
		}
		return nil
	}
}

func (db *DB) checkProject(ctx context.Context, projectID string) error {
	var exists bool
	if err := db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM cb_projects WHERE id = $1)", projectID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("project %s: %w", projectID, model.ErrNotFound)
	}
	return nil
}

// ProjectStats counts a project's records. The counts run concurrently.
func (db *DB) ProjectStats(ctx context.Context, projectID string) (model.ProjectStats, error) {
	if err := db.checkProject(ctx, projectID); err != nil {
		return model.ProjectStats{}, err
	}

	s := model.ProjectStats{ProjectID: projectID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(db.count(gctx, &s.TotalContacts, "SELECT COUNT(*) FROM cb_contacts WHERE project_id = $1", projectID))
	g.Go(db.count(gctx, &s.TotalCampaigns, "SELECT COUNT(*) FROM cb_campaigns WHERE project_id = $1", projectID))
	g.Go(db.count(gctx, &s.TotalCalls, "SELECT COUNT(*) FROM cb_calls WHERE project_id = $1", projectID))
	g.Go(db.count(gctx, &s.TotalAgents, "SELECT COUNT(*) FROM cb_agents WHERE project_id = $1", projectID))
	g.Go(db.count(gctx, &s.SuccessfulCalls,
		"SELECT COUNT(*) FROM cb_calls WHERE project_id = $1 AND call_status = $2", projectID, model.CallCompleted))
	if err := g.Wait(); err != nil {
		return model.ProjectStats{}, err
	}

	s.SuccessRate = model.SuccessRate(s.SuccessfulCalls, s.TotalCalls)
	return s, nil
}

// CampaignStats summarizes the calls a campaign placed in one pass.
func (db *DB) CampaignStats(ctx context.Context, campaignID string) (model.CampaignStats, error) {
	s := model.CampaignStats{CampaignID: campaignID}

	err := db.QueryRow(ctx, "SELECT status FROM cb_campaigns WHERE id = $1", campaignID).Scan(&s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, fmt.Errorf("campaign %s: %w", campaignID, model.ErrNotFound)
	}
	if err != nil {
		return s, err
	}

	err = db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE call_status = $2),
		       COUNT(*) FILTER (WHERE call_status IN ($3, $4))
		FROM cb_calls
		WHERE campaign_id = $1`,
		campaignID, model.CallCompleted, model.CallFailed, model.CallNoAnswer,
	).Scan(&s.TotalCalls, &s.CompletedCalls, &s.FailedCalls)
	if err != nil {
		return s, err
	}

	s.SuccessRate = model.SuccessRate(s.CompletedCalls, s.TotalCalls)
	return s, nil
}

// ProjectSummary reports the calls a project started in the last days days.
// Sentiment averages the scores stored on completed calls; there is no
// per-call analytics table, so satisfaction and interruptions stay zero.
func (db *DB) ProjectSummary(ctx context.Context, projectID string, days int) (model.ProjectSummary, error) {
	if days < 1 || days > model.MaxSummaryDays {
		return model.ProjectSummary{}, fmt.Errorf("days %d: %w", days, util.ErrUnsupportedValue)
	}
	if err := db.checkProject(ctx, projectID); err != nil {
		return model.ProjectSummary{}, err
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	var total, completed, failed, answered, seconds int
	var sentiment float64
	err := db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE call_status = $4),
		       COUNT(*) FILTER (WHERE call_status = $5),
		       COUNT(*) FILTER (WHERE answered_at IS NOT NULL),
		       COALESCE(SUM(duration_seconds), 0),
		       COALESCE(AVG(sentiment_score) FILTER (WHERE call_status = $4), 0)
		FROM cb_calls
		WHERE project_id = $1 AND started_at >= $2 AND started_at <= $3`,
		projectID, start, end, model.CallCompleted, model.CallFailed,
	).Scan(&total, &completed, &failed, &answered, &seconds, &sentiment)
	if err != nil {
		return model.ProjectSummary{}, err
	}

	return model.ProjectSummary{
		ProjectID:  projectID,
		PeriodDays: days,
		DateRange:  model.DateRange{Start: start, End: end},
		Calls:      model.NewCallMetrics(total, completed, failed, answered),
		Durations:  model.NewDurationMetrics(seconds, completed),
		Quality:    model.QualityMetrics{AverageSentiment: math.Round(sentiment*100) / 100},
	}, nil
}
