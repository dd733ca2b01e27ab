// Package model defines the call-center entities shown by callboard, the
// operations that can be applied to them, and how each entity kind is laid
// out as a table.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind names an entity collection.
type Kind string

const (
	KindProject  Kind = "projects"
	KindAgent    Kind = "agents"
	KindContact  Kind = "contacts"
	KindCampaign Kind = "campaigns"
	KindCall     Kind = "calls"
)

// Kinds lists every entity kind in display order.
var Kinds = []Kind{KindProject, KindAgent, KindContact, KindCampaign, KindCall}

// ParseKind accepts the plural collection name or its singular form.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == string(k) || s == k.Singular() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Singular is the kind's name for one record.
func (k Kind) Singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// ProjectScoped reports whether listing the kind requires a project ID.
func (k Kind) ProjectScoped() bool {
	return k != KindProject
}

// Project groups agents, contacts, campaigns and calls.
type Project struct {
	Key         string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

func (p Project) ID() string { return p.Key }

// Agent is an AI voice agent configured for a project.
type Agent struct {
	Key              string         `json:"id" db:"id"`
	ProjectID        string         `json:"project_id" db:"project_id"`
	Name             string         `json:"name" db:"name"`
	Prompt           string         `json:"prompt" db:"prompt"`
	VoiceSettings    map[string]any `json:"voice_settings" db:"voice_settings"`
	BehaviorSettings map[string]any `json:"behavior_settings" db:"behavior_settings"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	IsActive         bool           `json:"is_active" db:"is_active"`
}

func (a Agent) ID() string { return a.Key }

// Contact is a person that can be called.
type Contact struct {
	Key         string    `json:"id" db:"id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Email       *string   `json:"email" db:"email"`
	Notes       *string   `json:"notes" db:"notes"`
	Tags        []string  `json:"tags" db:"tags"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (c Contact) ID() string { return c.Key }

// Campaign types.
const (
	CampaignIndividual = "individual"
	CampaignGroup      = "group"
	CampaignBatch      = "batch"
)

// Campaign statuses.
const (
	CampaignPending   = "pending"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

// Campaign is a batch of outbound calls run by one agent.
type Campaign struct {
	Key          string     `json:"id" db:"id"`
	ProjectID    string     `json:"project_id" db:"project_id"`
	AgentID      *string    `json:"ai_agent_id" db:"ai_agent_id"`
	Name         string     `json:"name" db:"name"`
	Description  *string    `json:"description" db:"description"`
	CampaignType string     `json:"campaign_type" db:"campaign_type"`
	Status       string     `json:"status" db:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

func (c Campaign) ID() string { return c.Key }

// Call types.
const (
	CallInbound  = "inbound"
	CallOutbound = "outbound"
)

// Call statuses.
const (
	CallInitiated = "initiated"
	CallRinging   = "ringing"
	CallAnswered  = "answered"
	CallCompleted = "completed"
	CallFailed    = "failed"
	CallNoAnswer  = "no_answer"
)

// Call is one inbound or outbound phone call.
type Call struct {
	Key             string     `json:"id" db:"id"`
	ProjectID       string     `json:"project_id" db:"project_id"`
	CampaignID      *string    `json:"campaign_id" db:"campaign_id"`
	ContactID       *string    `json:"contact_id" db:"contact_id"`
	AgentID         *string    `json:"ai_agent_id" db:"ai_agent_id"`
	RoomName        *string    `json:"room_name" db:"room_name"`
	CallType        string     `json:"call_type" db:"call_type"`
	PhoneNumber     string     `json:"phone_number" db:"phone_number"`
	Status          string     `json:"call_status" db:"call_status"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	AnsweredAt      *time.Time `json:"answered_at" db:"answered_at"`
	EndedAt         *time.Time `json:"ended_at" db:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds" db:"duration_seconds"`
	SentimentScore  *float64   `json:"sentiment_score" db:"sentiment_score"`
	Summary         *string    `json:"call_summary" db:"call_summary"`
	Outcome         *string    `json:"call_outcome" db:"call_outcome"`
	KeyPoints       []string   `json:"key_points" db:"key_points"`
	ActionItems     []string   `json:"action_items" db:"action_items"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

func (c Call) ID() string { return c.Key }

// Finished reports whether the call reached a terminal status.
func (c Call) Finished() bool {
	switch c.Status {
	case CallCompleted, CallFailed, CallNoAnswer:
		return true
	}
	return false
}

// ProjectStats counts the records that belong to a project.
type ProjectStats struct {
	ProjectID       string  `json:"project_id"`
	TotalContacts   int     `json:"total_contacts"`
	TotalCampaigns  int     `json:"total_campaigns"`
	TotalCalls      int     `json:"total_calls"`
	TotalAgents     int     `json:"total_agents"`
	SuccessfulCalls int     `json:"successful_calls"`
	SuccessRate     float64 `json:"success_rate"`
}

// CampaignStats summarizes the calls placed by a campaign.
type CampaignStats struct {
	CampaignID     string  `json:"campaign_id"`
	TotalCalls     int     `json:"total_calls"`
	CompletedCalls int     `json:"completed_calls"`
	FailedCalls    int     `json:"failed_calls"`
	SuccessRate    float64 `json:"success_rate"`
	Status         string  `json:"status"`
}

// ProjectSummary reports call activity of a project over the last Days
// days.
type ProjectSummary struct {
	ProjectID  string          `json:"project_id"`
	PeriodDays int             `json:"period_days"`
	DateRange  DateRange       `json:"date_range"`
	Calls      CallMetrics     `json:"call_metrics"`
	Durations  DurationMetrics `json:"duration_metrics"`
	Quality    QualityMetrics  `json:"quality_metrics"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CallMetrics counts calls by outcome. Rates are fractions in [0, 1].
type CallMetrics struct {
	TotalCalls     int     `json:"total_calls"`
	CompletedCalls int     `json:"completed_calls"`
	FailedCalls    int     `json:"failed_calls"`
	AnsweredCalls  int     `json:"answered_calls"`
	AnswerRate     float64 `json:"answer_rate"`
	CompletionRate float64 `json:"completion_rate"`
}

type DurationMetrics struct {
	TotalSeconds   int     `json:"total_duration_seconds"`
	AverageSeconds int     `json:"average_duration_seconds"`
	TotalHours     float64 `json:"total_duration_hours"`
}

type QualityMetrics struct {
	AverageSentiment     float64 `json:"average_sentiment_score"`
	AverageSatisfaction  float64 `json:"average_satisfaction_score"`
	TotalInterruptions   int     `json:"total_interruptions"`
	InterruptionsPerCall float64 `json:"avg_interruptions_per_call"`
}

// Summary periods accepted by ProjectSummary.
const (
	DefaultSummaryDays = 30
	MaxSummaryDays     = 365
)

// NewCallMetrics derives the rates from the counts.
func NewCallMetrics(total, completed, failed, answered int) CallMetrics {
	m := CallMetrics{TotalCalls: total, CompletedCalls: completed, FailedCalls: failed, AnsweredCalls: answered}
	if total > 0 {
		m.AnswerRate = float64(answered) / float64(total)
		m.CompletionRate = float64(completed) / float64(total)
	}
	return m
}

// NewDurationMetrics averages talk time over completed calls.
func NewDurationMetrics(totalSeconds, completed int) DurationMetrics {
	d := DurationMetrics{
		TotalSeconds: totalSeconds,
		TotalHours:   math.Round(float64(totalSeconds)/3600*100) / 100,
	}
	if completed > 0 {
		d.AverageSeconds = totalSeconds / completed
	}
	return d
}

// SuccessRate is the percentage of ok out of total, 0 when total is 0.
func SuccessRate(ok, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(ok) / float64(total) * 100
}
