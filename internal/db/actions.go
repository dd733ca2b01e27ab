package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ActionEntry is one row of the action log.
type ActionEntry struct {
	Key       string    `json:"id" db:"id"`
	Kind      string    `json:"kind" db:"kind"`
	RecordID  string    `json:"record_id" db:"record_id"`
	Op        string    `json:"op" db:"op"`
	FromState *string   `json:"from_state" db:"from_state"`
	ToState   *string   `json:"to_state" db:"to_state"`
	Actor     string    `json:"actor" db:"actor"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (e ActionEntry) ID() string { return e.Key }

var kindTables = map[model.Kind]string{
	model.KindProject:  "cb_projects",
	model.KindAgent:    "cb_agents",
	model.KindContact:  "cb_contacts",
	model.KindCampaign: "cb_campaigns",
	model.KindCall:     "cb_calls",
}

// Apply performs op on a record and appends it to the action log, both in
// one transaction. Status changes lock the row so concurrent actions on the
// same record see each other's result.
func (db *DB) Apply(ctx context.Context, kind model.Kind, id string, op model.Op) error {
	if _, err := model.ParseOp(kind, string(op)); err != nil {
		return err
	}
	table := kindTables[kind]

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		var from, to *string
		var err error

		switch {
		case op == model.OpDelete:
			err = deleteRecord(ctx, tx, kind, table, id)
		case kind == model.KindCampaign:
			from, to, err = transition(ctx, tx, table, "status", id, op, model.NextCampaignStatus)
		case kind == model.KindCall:
			from, to, err = transition(ctx, tx, table, "call_status", id, op, model.NextCallStatus)
		default:
			err = fmt.Errorf("%w: %s %s", model.ErrOpNotSupported, op, kind)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cb_action_log (id, kind, record_id, op, from_state, to_state, actor)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			util.NewULID(), string(kind), id, string(op), from, to, db.actor)
		return err
	})
	if err != nil {
		return err
	}

	db.logger.Debug("applied action",
		zap.String("kind", string(kind)), zap.String("id", id), zap.String("op", string(op)))
	return nil
}

func deleteRecord(ctx context.Context, tx pgx.Tx, kind model.Kind, table, id string) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)
	if model.SoftDelete(kind) {
		sql = fmt.Sprintf("UPDATE %s SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active", table)
	}
	tag, err := tx.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind.Singular(), id, model.ErrNotFound)
	}
	return nil
}

// transition moves a record's status column through next, returning the
// old and new values.
func transition(ctx context.Context, tx pgx.Tx, table, column, id string, op model.Op,
	next func(string, model.Op) (string, error)) (*string, *string, error) {

	var from string
	err := tx.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 FOR UPDATE", column, table), id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	to, err := next(from, op)
	if err != nil {
		return nil, nil, err
	}

	set := fmt.Sprintf("%s = $2", column)
	if table == "cb_calls" {
		set += callStamps[op]
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, set), id, to); err != nil {
		return nil, nil, err
	}
	return &from, &to, nil
}

// callStamps are the timestamp columns each call op sets next to the status.
// Only ending an answered call records its talk time.
var callStamps = map[model.Op]string{
	model.OpStart:  ", started_at = NOW(), room_name = COALESCE(room_name, 'call-' || id)",
	model.OpAnswer: ", answered_at = NOW()",
	model.OpEnd: `, ended_at = NOW(), duration_seconds = CASE
		WHEN answered_at IS NOT NULL THEN EXTRACT(EPOCH FROM NOW() - answered_at)::INTEGER
		ELSE duration_seconds END`,
	model.OpFail: ", ended_at = NOW()",
}

// RecentActions returns the newest action log entries first.
func (db *DB) RecentActions(ctx context.Context, limit int) ([]ActionEntry, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := db.Query(ctx, `
		SELECT id, kind, record_id, op, from_state, to_state, actor, created_at
		FROM cb_action_log
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ActionEntry])
}
