// Package api is the REST backend for callboard. It talks to the
// call-center API under /api/v1 and pages through collections with the
// skip and limit query parameters the API accepts.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/source"
	"go.uber.org/zap"
)

// MaxLimit is the largest page the API serves.
const MaxLimit = 100

// TotalHeader carries the collection size when the API reports it.
const TotalHeader = "X-Total-Count"

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// Is maps 404 onto model.ErrNotFound and 409 onto model.ErrInvalidTransition.
func (e *StatusError) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.Code == http.StatusNotFound
	case model.ErrInvalidTransition:
		return e.Code == http.StatusConflict || e.Code == http.StatusBadRequest
	}
	return false
}

// Client is a source.Source backed by the REST API.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

var _ source.Source = (*Client)(nil)

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.base.JoinPath("api/v1", path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// do sends a request and decodes a JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, params), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Detail: detail(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.Header, nil
}

// detail extracts FastAPI's {"detail": "..."} message from an error body.
func detail(body io.Reader) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	if json.Unmarshal(data, &payload) != nil {
		return strings.TrimSpace(string(data))
	}
	switch d := payload.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	}
	b, _ := json.Marshal(payload.Detail)
	return string(b)
}

// naiveTime matches the zone-less ISO timestamps the API emits.
var naiveTime = regexp.MustCompile(`^"\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?"$`)

// normalizeRecords rewrites a JSON array of records so it decodes into the
// model types: Mongo's "_id" becomes "id" and naive timestamps are read
// as UTC.
func normalizeRecords(data json.RawMessage) (json.RawMessage, error) {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		normalizeRow(row)
	}
	return json.Marshal(rows)
}

func normalizeRow(row map[string]json.RawMessage) {
	if id, ok := row["_id"]; ok {
		if _, has := row["id"]; !has {
			row["id"] = id
		}
		delete(row, "_id")
	}
	for k, v := range row {
		if naiveTime.Match(v) {
			row[k] = append(v[:len(v)-1:len(v)-1], `Z"`...)
		}
	}
}

func pageParams(q source.Query) url.Values {
	limit := q.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	params := url.Values{}
	params.Set("skip", strconv.Itoa(max(q.Skip, 0)))
	params.Set("limit", strconv.Itoa(limit))
	return params
}

func list[T any](ctx context.Context, c *Client, path string, params url.Values) (source.Page[T], error) {
	var raw json.RawMessage
	header, err := c.do(ctx, http.MethodGet, path, params, &raw)
	if err != nil {
		return source.Page[T]{}, err
	}
	raw, err = normalizeRecords(raw)
	if err != nil {
		return source.Page[T]{}, fmt.Errorf("decode %s: %w", path, err)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return source.Page[T]{}, fmt.Errorf("decode %s: %w", path, err)
	}
	total := -1
	if v := header.Get(TotalHeader); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			total = n
		}
	}
	return source.Page[T]{Items: items, Total: total}, nil
}

func requireProject(q source.Query) error {
	if q.ProjectID == "" {
		return errors.New("project_id is required")
	}
	return nil
}

// Projects lists the active projects created by q.CreatedBy.
func (c *Client) Projects(ctx context.Context, q source.Query) (source.Page[model.Project], error) {
	if q.CreatedBy == "" {
		return source.Page[model.Project]{}, errors.New("created_by is required to list projects")
	}
	params := pageParams(q)
	params.Set("created_by", q.CreatedBy)
	return list[model.Project](ctx, c, "projects/", params)
}

func (c *Client) Agents(ctx context.Context, q source.Query) (source.Page[model.Agent], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Agent]{}, err
	}
	params := pageParams(q)
	params.Set("project_id", q.ProjectID)
	return list[model.Agent](ctx, c, "agents/", params)
}

func (c *Client) Contacts(ctx context.Context, q source.Query) (source.Page[model.Contact], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Contact]{}, err
	}
	params := pageParams(q)
	params.Set("project_id", q.ProjectID)
	return list[model.Contact](ctx, c, "contacts/", params)
}

func (c *Client) Campaigns(ctx context.Context, q source.Query) (source.Page[model.Campaign], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Campaign]{}, err
	}
	params := pageParams(q)
	params.Set("project_id", q.ProjectID)
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	return list[model.Campaign](ctx, c, "campaigns/", params)
}

func (c *Client) Calls(ctx context.Context, q source.Query) (source.Page[model.Call], error) {
	if err := requireProject(q); err != nil {
		return source.Page[model.Call]{}, err
	}
	params := pageParams(q)
	params.Set("project_id", q.ProjectID)
	if q.Status != "" {
		params.Set("call_status", q.Status)
	}
	if q.ContactID != "" {
		params.Set("contact_id", q.ContactID)
	}
	if q.CampaignID != "" {
		params.Set("campaign_id", q.CampaignID)
	}
	if q.CallType != "" {
		params.Set("call_type", q.CallType)
	}
	return list[model.Call](ctx, c, "calls/", params)
}

func (c *Client) ProjectStats(ctx context.Context, projectID string) (model.ProjectStats, error) {
	var stats model.ProjectStats
	_, err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(projectID)+"/stats", nil, &stats)
	return stats, err
}

func (c *Client) CampaignStats(ctx context.Context, campaignID string) (model.CampaignStats, error) {
	var stats model.CampaignStats
	_, err := c.do(ctx, http.MethodGet, "campaigns/"+url.PathEscape(campaignID)+"/stats", nil, &stats)
	return stats, err
}

// ProjectSummary fetches the analytics summary of a project.
func (c *Client) ProjectSummary(ctx context.Context, projectID string, days int) (model.ProjectSummary, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	var sum model.ProjectSummary
	_, err := c.do(ctx, http.MethodGet, "analytics/project/"+url.PathEscape(projectID)+"/summary", params, &sum)
	return sum, err
}

// call fetches one call.
func (c *Client) call(ctx context.Context, id string) (model.Call, error) {
	var row map[string]json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, "calls/"+url.PathEscape(id), nil, &row); err != nil {
		return model.Call{}, err
	}
	normalizeRow(row)
	data, err := json.Marshal(row)
	if err != nil {
		return model.Call{}, err
	}
	var call model.Call
	if err := json.Unmarshal(data, &call); err != nil {
		return model.Call{}, fmt.Errorf("decode call %s: %w", id, err)
	}
	return call, nil
}

// Apply maps op onto the API: delete is DELETE on the record, every other
// operation is a POST to the record's op sub-resource. The API moves calls
// in any status, so call transitions are checked here first and follow the
// same rules as the postgres backend.
func (c *Client) Apply(ctx context.Context, kind model.Kind, id string, op model.Op) error {
	if _, err := model.ParseOp(kind, string(op)); err != nil {
		return err
	}
	path := string(kind) + "/" + url.PathEscape(id)
	if op == model.OpDelete {
		_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
		return err
	}

	var params url.Values
	if kind == model.KindCall {
		call, err := c.call(ctx, id)
		if err != nil {
			return err
		}
		if _, err := model.NextCallStatus(call.Status, op); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		if op == model.OpStart {
			params = url.Values{"room_name": {model.CallRoomName(id)}}
		}
	}
	_, err := c.do(ctx, http.MethodPost, path+"/"+string(op), params, nil)
	return err
}

// Ping checks that the API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	u := c.base.JoinPath("health")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Method: http.MethodGet, Path: "/health", Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
