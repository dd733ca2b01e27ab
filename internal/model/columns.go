package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/util"
)

func relative[R table.Record](v any, _ R) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return util.RelativeTimeShort(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return util.RelativeTimeShort(*t)
	}
	return ""
}

func yesNo[R table.Record](v any, _ R) string {
	if b, ok := v.(bool); ok && b {
		return "yes"
	}
	return "no"
}

func shortRef[R table.Record](v any, _ R) string {
	if s, ok := v.(*string); ok && s != nil {
		return util.ShortID(*s)
	}
	return ""
}

func clip(n int) func(any, Agent) string {
	return func(v any, _ Agent) string {
		s, _ := v.(string)
		s = strings.Join(strings.Fields(s), " ")
		if len([]rune(s)) > n {
			return string([]rune(s)[:n-1]) + "…"
		}
		return s
	}
}

// FormatDuration renders call seconds as 1h02m03s, 4m05s or 12s.
func FormatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm%02ds", int(d.Hours()), int(d.Minutes())%60, seconds%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatSentiment renders a -1..1 score with an explicit sign.
func FormatSentiment(score float64) string {
	return fmt.Sprintf("%+.2f", score)
}

// ProjectColumns lays out the project list.
func ProjectColumns() []table.Column[Project] {
	return []table.Column[Project]{
		{Key: "name", Label: "Name", Sortable: true, Width: 24},
		{Key: "description", Label: "Description", Width: 32},
		{Key: "created_by", Label: "Owner", Sortable: true},
		{Key: "is_active", Label: "Active", Sortable: true, Render: yesNo[Project]},
		{Key: "created_at", Label: "Created", Sortable: true, Render: relative[Project]},
	}
}

// AgentColumns lays out the AI agent list.
func AgentColumns() []table.Column[Agent] {
	return []table.Column[Agent]{
		{Key: "name", Label: "Name", Sortable: true, Width: 20},
		{Key: "voice", Label: "Voice", Render: func(_ any, a Agent) string {
			return table.Stringify(a.VoiceSettings["voice"])
		}},
		{Key: "prompt", Label: "Prompt", Width: 40, Render: clip(40)},
		{Key: "is_active", Label: "Active", Sortable: true, Render: yesNo[Agent]},
		{Key: "updated_at", Label: "Updated", Sortable: true, Render: relative[Agent]},
	}
}

// ContactColumns lays out the contact list.
func ContactColumns() []table.Column[Contact] {
	return []table.Column[Contact]{
		{Key: "name", Label: "Name", Sortable: true, Width: 24},
		{Key: "phone_number", Label: "Phone", Sortable: true},
		{Key: "email", Label: "Email", Sortable: true, Width: 28},
		{Key: "tags", Label: "Tags"},
		{Key: "created_at", Label: "Added", Sortable: true, Render: relative[Contact]},
	}
}

// CampaignColumns lays out the campaign list.
func CampaignColumns() []table.Column[Campaign] {
	return []table.Column[Campaign]{
		{Key: "name", Label: "Name", Sortable: true, Width: 24},
		{Key: "campaign_type", Label: "Type", Sortable: true},
		{Key: "status", Label: "Status", Sortable: true},
		{Key: "ai_agent_id", Label: "Agent", Render: shortRef[Campaign]},
		{Key: "scheduled_at", Label: "Scheduled", Sortable: true, Render: func(v any, _ Campaign) string {
			return table.Stringify(v)
		}},
		{Key: "created_at", Label: "Created", Sortable: true, Render: relative[Campaign]},
	}
}

// CallColumns lays out the call list.
func CallColumns() []table.Column[Call] {
	return []table.Column[Call]{
		{Key: "phone_number", Label: "Phone", Sortable: true},
		{Key: "call_type", Label: "Direction", Sortable: true},
		{Key: "call_status", Label: "Status", Sortable: true},
		{Key: "started_at", Label: "Started", Sortable: true, Render: func(v any, _ Call) string {
			return table.Stringify(v)
		}},
		{Key: "duration_seconds", Label: "Duration", Sortable: true, Render: func(v any, _ Call) string {
			if d, ok := v.(*int); ok && d != nil {
				return FormatDuration(*d)
			}
			return ""
		}},
		{Key: "sentiment_score", Label: "Sentiment", Sortable: true, Render: func(v any, _ Call) string {
			if s, ok := v.(*float64); ok && s != nil {
				return FormatSentiment(*s)
			}
			return ""
		}},
		{Key: "call_outcome", Label: "Outcome", Width: 30},
	}
}

// EmptyMessage is the placeholder for an empty list of kind.
func EmptyMessage(k Kind) string {
	return fmt.Sprintf("No %s found", k)
}
