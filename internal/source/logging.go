package source

import (
	"context"
	"time"

	"github.com/imgajeed76/callboard/internal/model"
	"go.uber.org/zap"
)

// WithLogging wraps src so every fetch and action is logged at debug
// level, and failures at warn level.
func WithLogging(src Source, logger *zap.Logger) Source {
	if logger == nil {
		return src
	}
	return &logged{Source: src, log: logger}
}

type logged struct {
	Source
	log *zap.Logger
}

func fetch[T any](ctx context.Context, l *logged, kind model.Kind, q Query, fn Fetcher[T]) (Page[T], error) {
	start := time.Now()
	page, err := fn(ctx, q)
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("skip", q.Skip),
		zap.Int("limit", q.Limit),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("fetch failed", append(fields, zap.Error(err))...)
		return page, err
	}
	l.log.Debug("fetched page", append(fields, zap.Int("rows", len(page.Items)), zap.Int("total", page.Total))...)
	return page, nil
}

func (l *logged) Projects(ctx context.Context, q Query) (Page[model.Project], error) {
	return fetch(ctx, l, model.KindProject, q, l.Source.Projects)
}

func (l *logged) Agents(ctx context.Context, q Query) (Page[model.Agent], error) {
	return fetch(ctx, l, model.KindAgent, q, l.Source.Agents)
}

func (l *logged) Contacts(ctx context.Context, q Query) (Page[model.Contact], error) {
	return fetch(ctx, l, model.KindContact, q, l.Source.Contacts)
}

func (l *logged) Campaigns(ctx context.Context, q Query) (Page[model.Campaign], error) {
	return fetch(ctx, l, model.KindCampaign, q, l.Source.Campaigns)
}

func (l *logged) Calls(ctx context.Context, q Query) (Page[model.Call], error) {
	return fetch(ctx, l, model.KindCall, q, l.Source.Calls)
}

func (l *logged) ProjectSummary(ctx context.Context, projectID string, days int) (model.ProjectSummary, error) {
	start := time.Now()
	sum, err := l.Source.ProjectSummary(ctx, projectID, days)
	fields := []zap.Field{zap.String("project", projectID), zap.Int("days", days), zap.Duration("took", time.Since(start))}
	if err != nil {
		l.log.Warn("summary failed", append(fields, zap.Error(err))...)
		return sum, err
	}
	l.log.Debug("summary", append(fields, zap.Int("calls", sum.Calls.TotalCalls))...)
	return sum, nil
}

func (l *logged) Apply(ctx context.Context, kind model.Kind, id string, op model.Op) error {
	err := l.Source.Apply(ctx, kind, id, op)
	fields := []zap.Field{zap.String("kind", string(kind)), zap.String("id", id), zap.String("op", string(op))}
	if err != nil {
		l.log.Warn("action failed", append(fields, zap.Error(err))...)
		return err
	}
	l.log.Info("action applied", fields...)
	return nil
}
