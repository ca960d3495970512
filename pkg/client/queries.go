package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"query-scheduler/internal/api"
	"query-scheduler/internal/domain"
	"query-scheduler/internal/lifecycle"
)

var (
	_ lifecycle.Saver   = (*Client)(nil)
	_ lifecycle.Deleter = (*Client)(nil)
)

// ListOptions filters ListQueries.
type ListOptions struct {
	Owner      string
	Tag        string
	MaxResults int
	PageToken  string
}

// QueryPage is one page of scheduled queries.
type QueryPage struct {
	Queries       []*domain.ScheduledQuery
	NextPageToken string
}

// GetQuery fetches one scheduled query.
func (c *Client) GetQuery(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	var out api.ScheduledQuery
	if err := c.call(ctx, http.MethodGet, "/queries/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.ToDomain(), nil
}

// ListQueries fetches a page of scheduled queries.
func (c *Client) ListQueries(ctx context.Context, opts ListOptions) (*QueryPage, error) {
	q := url.Values{}
	if opts.Owner != "" {
		q.Set("owner", opts.Owner)
	}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	if opts.MaxResults > 0 {
		q.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	if opts.PageToken != "" {
		q.Set("page_token", opts.PageToken)
	}

	var out api.PaginatedScheduledQueries
	if err := c.call(ctx, http.MethodGet, "/queries", q, nil, &out); err != nil {
		return nil, err
	}
	page := &QueryPage{NextPageToken: out.NextPageToken, Queries: make([]*domain.ScheduledQuery, len(out.Data))}
	for i, item := range out.Data {
		page.Queries[i] = item.ToDomain()
	}
	return page, nil
}

// SaveQuery creates or updates a scheduled query and returns the stored
// record. The server runs the query as part of every save.
func (c *Client) SaveQuery(ctx context.Context, req domain.SaveRequest) (*domain.ScheduledQuery, error) {
	var out api.ScheduledQuery
	if err := c.call(ctx, http.MethodPut, "/queries/"+url.PathEscape(req.ID), nil, req, &out); err != nil {
		return nil, err
	}
	return out.ToDomain(), nil
}

// Save implements lifecycle.Saver.
func (c *Client) Save(ctx context.Context, req domain.SaveRequest) error {
	_, err := c.SaveQuery(ctx, req)
	return err
}

// Delete implements lifecycle.Deleter.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/queries/"+url.PathEscape(id), nil, nil, nil)
}

// RunNow triggers an execution without changing the stored record.
func (c *Client) RunNow(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	var out api.ScheduledQuery
	if err := c.call(ctx, http.MethodPost, "/queries/"+url.PathEscape(id)+"/run", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.ToDomain(), nil
}

// ListTags returns the tag catalog.
func (c *Client) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var out []api.Tag
	if err := c.call(ctx, http.MethodGet, "/tags", nil, nil, &out); err != nil {
		return nil, err
	}
	tags := make([]domain.Tag, len(out))
	for i, t := range out {
		tags[i] = t.ToDomain()
	}
	return tags, nil
}

// CreateTag adds a tag to the catalog.
func (c *Client) CreateTag(ctx context.Context, name, color string) (*domain.Tag, error) {
	var out api.Tag
	if err := c.call(ctx, http.MethodPost, "/tags", nil, api.CreateTagRequest{Name: name, Color: color}, &out); err != nil {
		return nil, err
	}
	tag := out.ToDomain()
	return &tag, nil
}

// DailyCalls returns the estimated daily executions across all queries.
func (c *Client) DailyCalls(ctx context.Context) (int, error) {
	var out api.DailyCalls
	if err := c.call(ctx, http.MethodGet, "/stats/daily-calls", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

// Audit returns the most recent audit entries of a query.
func (c *Client) Audit(ctx context.Context, id string, maxResults int) ([]api.AuditEntry, error) {
	q := url.Values{}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}
	var out api.PaginatedAuditEntries
	if err := c.call(ctx, http.MethodGet, "/queries/"+url.PathEscape(id)+"/audit", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
