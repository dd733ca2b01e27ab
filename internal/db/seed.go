package db

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/imgajeed76/callboard/internal/model"
	"github.com/jackc/pgx/v5"
)

// SeedOptions sizes the demo data set.
type SeedOptions struct {
	Owner     string // created_by of the demo project
	Contacts  int
	Campaigns int
	Calls     int
	Seed      uint64 // same seed, same data shape (IDs are always fresh)
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	ProjectID string
	Agents    int
	Contacts  int
	Campaigns int
	Calls     int
}

var (
	seedFirstNames = []string{"Ana", "Ben", "Chloé", "Dmitri", "Eva", "Farah", "Gus", "Hana", "Ivo", "Jürgen", "Kira", "Luis"}
	seedLastNames  = []string{"Alvarez", "Brown", "Chen", "Dubois", "Eriksen", "Fischer", "Garcia", "Haddad", "Ito", "Jensen"}
	seedTags       = []string{"vip", "lead", "renewal", "churn-risk", "newsletter", "trial"}
	seedOutcomes   = []string{"Booked appointment", "Requested callback", "Not interested", "Left voicemail", "Upgraded plan"}
	seedStatuses   = []string{model.CallCompleted, model.CallCompleted, model.CallCompleted, model.CallFailed, model.CallNoAnswer, model.CallAnswered}
)

// Seed inserts one demo project with agents, contacts, campaigns and calls
// in a single transaction. Calls are bulk-loaded with COPY.
func (db *DB) Seed(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	if opts.Owner == "" {
		return SeedResult{}, fmt.Errorf("seed needs an owner")
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	now := time.Now().UTC().Truncate(time.Second)
	res := SeedResult{ProjectID: uuid.NewString()}

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cb_projects (id, name, description, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			res.ProjectID, "Demo clinic", "Seeded by callboard db seed", opts.Owner, now.Add(-30*24*time.Hour)); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}

		agents := []struct{ name, voice, prompt string }{
			{"Receptionist", "alloy", "You answer inbound calls for the clinic and book appointments."},
			{"Reminder bot", "verse", "You call patients the day before their appointment to confirm it."},
		}
		agentIDs := make([]string, len(agents))
		for i, a := range agents {
			agentIDs[i] = uuid.NewString()
			if _, err := tx.Exec(ctx, `
				INSERT INTO cb_agents (id, project_id, name, prompt, voice_settings)
				VALUES ($1, $2, $3, $4, $5)`,
				agentIDs[i], res.ProjectID, a.name, a.prompt, map[string]any{"voice": a.voice, "speed": 1.0}); err != nil {
				return fmt.Errorf("insert agent: %w", err)
			}
		}
		res.Agents = len(agents)

		contactRows := make([][]any, opts.Contacts)
		contactIDs := make([]string, opts.Contacts)
		phones := make([]string, opts.Contacts)
		for i := range contactRows {
			contactIDs[i] = uuid.NewString()
			phones[i] = fmt.Sprintf("+1555%07d", rng.IntN(10_000_000))
			name := seedFirstNames[rng.IntN(len(seedFirstNames))] + " " + seedLastNames[rng.IntN(len(seedLastNames))]
			var email *string
			if rng.IntN(3) > 0 {
				e := fmt.Sprintf("contact%d@example.com", i+1)
				email = &e
			}
			tags := []string{seedTags[rng.IntN(len(seedTags))]}
			contactRows[i] = []any{contactIDs[i], res.ProjectID, name, phones[i], email, tags, now.Add(-time.Duration(rng.IntN(600)) * time.Hour)}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cb_contacts"},
			[]string{"id", "project_id", "name", "phone_number", "email", "tags", "created_at"},
			pgx.CopyFromRows(contactRows)); err != nil {
			return fmt.Errorf("copy contacts: %w", err)
		}
		res.Contacts = opts.Contacts

		campaignIDs := make([]string, opts.Campaigns)
		campaignStatuses := []string{model.CampaignPending, model.CampaignActive, model.CampaignPaused, model.CampaignCompleted}
		campaignTypes := []string{model.CampaignIndividual, model.CampaignGroup, model.CampaignBatch}
		for i := range campaignIDs {
			campaignIDs[i] = uuid.NewString()
			var scheduled *time.Time
			status := campaignStatuses[i%len(campaignStatuses)]
			if status == model.CampaignPending {
				at := now.Add(time.Duration(24+rng.IntN(96)) * time.Hour)
				scheduled = &at
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO cb_campaigns (id, project_id, ai_agent_id, name, campaign_type, status, scheduled_at, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				campaignIDs[i], res.ProjectID, agentIDs[1], fmt.Sprintf("Campaign %d", i+1),
				campaignTypes[rng.IntN(len(campaignTypes))], status, scheduled,
				now.Add(-time.Duration(rng.IntN(400))*time.Hour)); err != nil {
				return fmt.Errorf("insert campaign: %w", err)
			}
		}
		res.Campaigns = opts.Campaigns

		if opts.Contacts == 0 {
			return nil
		}
		callRows := make([][]any, opts.Calls)
		for i := range callRows {
			c := rng.IntN(opts.Contacts)
			started := now.Add(-time.Duration(rng.IntN(30*24*60)) * time.Minute)
			status := seedStatuses[rng.IntN(len(seedStatuses))]

			var campaignID *string
			callType, agentID := "inbound", agentIDs[0]
			if len(campaignIDs) > 0 && rng.IntN(2) == 0 {
				campaignID = &campaignIDs[rng.IntN(len(campaignIDs))]
				callType, agentID = "outbound", agentIDs[1]
			}

			var answered, ended *time.Time
			var duration *int
			var sentiment *float64
			var outcome *string
			if status == model.CallCompleted || status == model.CallAnswered {
				a := started.Add(time.Duration(3+rng.IntN(20)) * time.Second)
				answered = &a
			}
			if status == model.CallCompleted {
				d := 30 + rng.IntN(600)
				e := answered.Add(time.Duration(d) * time.Second)
				s := float64(rng.IntN(201)-100) / 100
				o := seedOutcomes[rng.IntN(len(seedOutcomes))]
				duration, ended, sentiment, outcome = &d, &e, &s, &o
			}

			callRows[i] = []any{
				uuid.NewString(), res.ProjectID, campaignID, contactIDs[c], agentID,
				callType, phones[c], status, started, answered, ended, duration, sentiment, outcome, started,
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cb_calls"},
			[]string{"id", "project_id", "campaign_id", "contact_id", "ai_agent_id",
				"call_type", "phone_number", "call_status", "started_at", "answered_at", "ended_at",
				"duration_seconds", "sentiment_score", "call_outcome", "created_at"},
			pgx.CopyFromRows(callRows)); err != nil {
			return fmt.Errorf("copy calls: %w", err)
		}
		res.Calls = opts.Calls
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	_ = db.SetMetadata(ctx, MetaKeySeededAt, now.Format(time.RFC3339))
	return res, nil
}
