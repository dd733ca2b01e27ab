package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient serves handler and returns a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", 5*time.Second, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("postgres://localhost/db", time.Second, nil)
	assert.Error(t, err)
	_, err = New("://", time.Second, nil)
	assert.Error(t, err)
}

func TestCampaignsQueryAndDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/campaigns/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "p1", q.Get("project_id"))
		assert.Equal(t, "active", q.Get("status"))
		assert.Equal(t, "20", q.Get("skip"))
		assert.Equal(t, "10", q.Get("limit"))

		w.Header().Set(TotalHeader, "42")
		_, _ = w.Write([]byte(`[
			{"_id": "c1", "project_id": "p1", "name": "Spring promo", "campaign_type": "batch",
			 "status": "active", "created_at": "2025-03-01T09:30:00.123456", "scheduled_at": null}
		]`))
	})

	page, err := c.Campaigns(context.Background(), source.Query{ProjectID: "p1", Status: "active", Skip: 20, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Items, 1)

	got := page.Items[0]
	assert.Equal(t, "c1", got.ID())
	assert.Equal(t, "Spring promo", got.Name)
	assert.Nil(t, got.ScheduledAt)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 123456000, time.UTC), got.CreatedAt)
}

func TestListWithoutTotalHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "completed", r.URL.Query().Get("call_status"))
		_, _ = w.Write([]byte(`[{"id": "k1", "call_status": "completed", "phone_number": "+1555"}]`))
	})

	q := source.Query{ProjectID: "p1", Status: "completed", Limit: 25}
	page, err := c.Calls(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, -1, page.Total)
	assert.Equal(t, 1, page.TotalOrInferred(q))
	assert.Equal(t, model.CallCompleted, page.Items[0].Status)
}

func TestLimitIsCapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("skip"))
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := c.Contacts(context.Background(), source.Query{ProjectID: "p1", Skip: -5, Limit: 1000})
	require.NoError(t, err)
}

func TestProjectScopedKindsNeedProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})
	ctx := context.Background()

	_, err := c.Agents(ctx, source.Query{})
	assert.Error(t, err)
	_, err = c.Projects(ctx, source.Query{})
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"_id": "k/1", "call_status": "answered"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	})
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, model.KindCampaign, "c1", model.OpStart))
	require.NoError(t, c.Apply(ctx, model.KindCall, "k/1", model.OpEnd))
	require.NoError(t, c.Apply(ctx, model.KindProject, "p1", model.OpDelete))

	err := c.Apply(ctx, model.KindContact, "x", model.OpStart)
	assert.True(t, errors.Is(err, model.ErrOpNotSupported))

	assert.Equal(t, []string{
		"POST /api/v1/campaigns/c1/start",
		"GET /api/v1/calls/k/1",
		"POST /api/v1/calls/k/1/end",
		"DELETE /api/v1/projects/p1",
	}, got)
}

func TestApplyCallStartSetsRoom(t *testing.T) {
	var room string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"_id": "k1", "call_status": "initiated", "started_at": "2025-03-01T09:30:00"}`))
			return
		}
		assert.Equal(t, "/api/v1/calls/k1/start", r.URL.Path)
		room = r.URL.Query().Get("room_name")
		_, _ = w.Write([]byte(`{"message": "ok"}`))
	})

	require.NoError(t, c.Apply(context.Background(), model.KindCall, "k1", model.OpStart))
	assert.Equal(t, "call-k1", room)
}

func TestApplyRefusesFinishedCall(t *testing.T) {
	for _, status := range []string{model.CallCompleted, model.CallFailed} {
		t.Run(status, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				_, _ = w.Write([]byte(`{"_id": "k1", "call_status": "` + status + `"}`))
			})

			err := c.Apply(context.Background(), model.KindCall, "k1", model.OpEnd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidTransition))
			assert.Contains(t, err.Error(), "k1")
		})
	}
}

func TestApplyMissingCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Call not found"}`))
	})
	err := c.Apply(context.Background(), model.KindCall, "k9", model.OpAnswer)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestCallFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "x1", q.Get("contact_id"))
		assert.Equal(t, "c1", q.Get("campaign_id"))
		assert.Equal(t, "inbound", q.Get("call_type"))
		assert.False(t, q.Has("call_status"))
		_, _ = w.Write([]byte(`[]`))
	})
	q := source.Query{ProjectID: "p1", ContactID: "x1", CampaignID: "c1", CallType: model.CallInbound}
	_, err := c.Calls(context.Background(), q)
	require.NoError(t, err)
}

func TestProjectSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/analytics/project/p1/summary", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{
			"project_id": "p1", "period_days": 7,
			"call_metrics": {"total_calls": 10, "completed_calls": 8, "answered_calls": 9, "answer_rate": 0.9, "completion_rate": 0.8},
			"duration_metrics": {"total_duration_seconds": 7200, "average_duration_seconds": 900, "total_duration_hours": 2},
			"quality_metrics": {"average_sentiment_score": 0.4, "total_interruptions": 3}
		}`))
	})

	sum, err := c.ProjectSummary(context.Background(), "p1", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, sum.PeriodDays)
	assert.Equal(t, 10, sum.Calls.TotalCalls)
	assert.Equal(t, 0.8, sum.Calls.CompletionRate)
	assert.Equal(t, 2.0, sum.Durations.TotalHours)
	assert.Equal(t, 3, sum.Quality.TotalInterruptions)
}

func TestStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/campaigns/missing/start":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Campaign not found"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "Campaign can only be started from pending status"}`))
		}
	})
	ctx := context.Background()

	err := c.Apply(ctx, model.KindCampaign, "missing", model.OpStart)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Contains(t, err.Error(), "Campaign not found")

	err = c.Apply(ctx, model.KindCampaign, "c1", model.OpStart)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))
	assert.False(t, errors.Is(err, model.ErrNotFound))
}

func TestStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/projects/p1/stats":
			_, _ = w.Write([]byte(`{"project_id": "p1", "total_calls": 4, "successful_calls": 3, "success_rate": 75}`))
		case "/api/v1/campaigns/c1/stats":
			_, _ = w.Write([]byte(`{"campaign_id": "c1", "total_calls": 2, "failed_calls": 1, "status": "active"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	ps, err := c.ProjectStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, ps.SuccessRate)
	assert.Equal(t, 3, ps.SuccessfulCalls)

	cs, err := c.CampaignStats(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "active", cs.Status)

	_, err = c.ProjectStats(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestPing(t *testing.T) {
	healthy := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	require.NoError(t, c.Ping(context.Background()))
	healthy = false
	assert.Error(t, c.Ping(context.Background()))
}
