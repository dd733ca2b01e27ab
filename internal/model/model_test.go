package model

import (
	"errors"
	"testing"

	"github.com/imgajeed76/callboard/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"projects": KindProject,
		"Project":  KindProject,
		"agent":    KindAgent,
		" calls ":  KindCall,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("widgets")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp(KindCampaign, "start")
	require.NoError(t, err)
	assert.Equal(t, OpStart, op)

	_, err = ParseOp(KindContact, "start")
	assert.True(t, errors.Is(err, ErrOpNotSupported))

	_, err = ParseOp(KindContact, "explode")
	assert.True(t, errors.Is(err, ErrUnknownOp))
}

func TestNextCampaignStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		op      Op
		want    string
		wantErr error
	}{
		{"start pending", CampaignPending, OpStart, CampaignActive, nil},
		{"start active", CampaignActive, OpStart, "", ErrInvalidTransition},
		{"pause active", CampaignActive, OpPause, CampaignPaused, nil},
		{"pause paused", CampaignPaused, OpPause, "", ErrInvalidTransition},
		{"complete from anything", CampaignPaused, OpComplete, CampaignCompleted, nil},
		{"delete is not a transition", CampaignActive, OpDelete, "", ErrOpNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextCampaignStatus(tt.from, tt.op)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextCallStatus(t *testing.T) {
	got, err := NextCallStatus(CallAnswered, OpEnd)
	require.NoError(t, err)
	assert.Equal(t, CallCompleted, got)

	got, err = NextCallStatus(CallRinging, OpFail)
	require.NoError(t, err)
	assert.Equal(t, CallFailed, got)

	_, err = NextCallStatus(CallCompleted, OpFail)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestCallLifecycle(t *testing.T) {
	tests := []struct {
		from string
		op   Op
		want string
	}{
		{CallInitiated, OpStart, CallRinging},
		{CallRinging, OpAnswer, CallAnswered},
		{CallInitiated, OpAnswer, CallAnswered},
		{CallAnswered, OpEnd, CallCompleted},
		{CallInitiated, OpFail, CallFailed},
	}
	for _, tt := range tests {
		got, err := NextCallStatus(tt.from, tt.op)
		require.NoError(t, err, "%s %s", tt.op, tt.from)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []struct {
		from string
		op   Op
	}{
		{CallRinging, OpStart},
		{CallAnswered, OpStart},
		{CallAnswered, OpAnswer},
		{CallNoAnswer, OpAnswer},
		{CallFailed, OpEnd},
	} {
		_, err := NextCallStatus(bad.from, bad.op)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s %s", bad.op, bad.from)
	}

	_, err := NextCallStatus(CallRinging, OpPause)
	assert.ErrorIs(t, err, ErrOpNotSupported)

	assert.Equal(t, []Op{OpStart, OpAnswer, OpEnd, OpFail, OpDelete}, OpsFor(KindCall))
	assert.Equal(t, "call-abc", CallRoomName("abc"))
}

func TestSummaryMetrics(t *testing.T) {
	m := NewCallMetrics(8, 4, 2, 6)
	assert.Equal(t, 0.75, m.AnswerRate)
	assert.Equal(t, 0.5, m.CompletionRate)
	assert.Equal(t, CallMetrics{}, NewCallMetrics(0, 0, 0, 0))

	d := NewDurationMetrics(5400, 4)
	assert.Equal(t, 1350, d.AverageSeconds)
	assert.Equal(t, 1.5, d.TotalHours)
	assert.Zero(t, NewDurationMetrics(90, 0).AverageSeconds)
	assert.Equal(t, 0.03, NewDurationMetrics(100, 1).TotalHours)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "12s", FormatDuration(12))
	assert.Equal(t, "4m05s", FormatDuration(245))
	assert.Equal(t, "1h02m03s", FormatDuration(3723))
	assert.Equal(t, "+0.42", FormatSentiment(0.42))
	assert.Equal(t, "-1.00", FormatSentiment(-1))
	assert.Equal(t, 50.0, SuccessRate(1, 2))
	assert.Equal(t, 0.0, SuccessRate(3, 0))
}

func TestCallColumnsRender(t *testing.T) {
	dur, score := 245, -0.5
	calls := []Call{
		{Key: "c1", PhoneNumber: "+15550001", CallType: "outbound", Status: CallCompleted, DurationSeconds: &dur, SentimentScore: &score},
		{Key: "c2", PhoneNumber: "+15550002", CallType: "inbound", Status: CallRinging},
	}
	e := table.New(table.Options[Call]{Columns: CallColumns(), Searchable: true})

	view, err := e.Render(calls, table.State{Sort: table.Sort{Column: "duration_seconds", Direction: table.Descending}})
	require.NoError(t, err)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "c1", view.Rows[0].ID)
	assert.Equal(t, []string{"+15550001", "outbound", "completed", table.EmptyCell, "4m05s", "-0.50", table.EmptyCell}, view.Rows[0].Cells)
	assert.Equal(t, table.EmptyCell, view.Rows[1].Cells[4])

	view, err = e.Render(calls, table.State{Search: "INBOUND"})
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "c2", view.Rows[0].ID)
}

func TestAgentColumnsRender(t *testing.T) {
	agents := []Agent{{
		Key:           "a1",
		Name:          "Receptionist",
		Prompt:        "You are a friendly receptionist who\nanswers calls for the dental clinic and books appointments.",
		VoiceSettings: map[string]any{"voice": "alloy"},
		IsActive:      true,
	}}
	view, err := table.New(table.Options[Agent]{Columns: AgentColumns()}).Render(agents, table.State{})
	require.NoError(t, err)
	cells := view.Rows[0].Cells
	assert.Equal(t, "Receptionist", cells[0])
	assert.Equal(t, "alloy", cells[1])
	assert.Len(t, []rune(cells[2]), 40)
	assert.Equal(t, "yes", cells[3])
}

func TestColumnsSortable(t *testing.T) {
	// every column layout must at least sort by name or phone
	assert.True(t, ProjectColumns()[0].Sortable)
	assert.True(t, ContactColumns()[1].Sortable)
	assert.True(t, CallColumns()[0].Sortable)
}
