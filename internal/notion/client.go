// Package notion is a small client for the Notion REST API covering the
// calls bmadnotion makes: pages, database rows, block children and
// database schema.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"
	// APIVersion is sent as the Notion-Version header.
	APIVersion = "2022-06-28"
)

// Client calls the Notion API. It is safe for concurrent use.
//
// Rate limited (429), conflicting (409), server (5xx) and network failures
// are retried with exponential backoff, honoring Retry-After. Callers only
// see the final outcome.
type Client struct {
	BaseURL    string
	Token      string
	Version    string
	HTTPClient *http.Client // nil uses http.DefaultClient

	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Logger *log.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a client authenticated with an integration token.
func New(token string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		Version:    APIVersion,
		MaxRetries: 4,
		MinBackoff: 500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		Logger:     log.New(os.Stderr, "[notion] ", log.LstdFlags),
		sleep:      sleepContext,
	}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do performs a request with retries and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.once(ctx, method, path, body)
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) || attempt >= c.MaxRetries {
			return nil, err
		}

		delay := c.backoff(attempt, err)
		c.logf("%v; retrying in %s (%d/%d)", err, delay, attempt+1, c.MaxRetries)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) backoff(attempt int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	d := c.MinBackoff << attempt
	if d <= 0 || d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

func (c *Client) once(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Notion-Version", c.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Method: method, Path: path, Message: err.Error(), kind: ErrTransient}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: err.Error(), kind: ErrTransient}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	code := gjson.GetBytes(data, "code").String()
	msg := gjson.GetBytes(data, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	apiErr := &APIError{
		Method:  method,
		Path:    path,
		Status:  resp.StatusCode,
		Code:    code,
		Message: msg,
		kind:    classify(resp.StatusCode, code),
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			apiErr.RetryAfter = secs
		}
	}
	return nil, apiErr
}

func idFrom(data []byte, method, path string) (string, error) {
	id := gjson.GetBytes(data, "id").String()
	if id == "" {
		return "", &APIError{Method: method, Path: path, Message: "response has no id", kind: ErrInvalidRequest}
	}
	return id, nil
}

func marshalRaw(body []byte, path string, v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return sjson.SetRawBytes(body, path, raw)
}

func firstBatch(blocks []Block) (first, rest []Block) {
	if len(blocks) <= MaxBlocksPerRequest {
		return blocks, nil
	}
	return blocks[:MaxBlocksPerRequest], blocks[MaxBlocksPerRequest:]
}

// CreatePage creates a page under a parent page. Blocks beyond the first
// request are appended afterwards; if that fails the new page id is
// returned together with the error.
func (c *Client) CreatePage(ctx context.Context, parentID, title string, blocks []Block) (string, error) {
	first, rest := firstBatch(blocks)

	body, err := sjson.SetBytes(nil, "parent.page_id", parentID)
	if err != nil {
		return "", err
	}
	if body, err = marshalRaw(body, "properties.title", TitleProperty(title)); err != nil {
		return "", err
	}
	if len(first) > 0 {
		if body, err = marshalRaw(body, "children", first); err != nil {
			return "", err
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return "", err
	}
	id, err := idFrom(resp, http.MethodPost, "/pages")
	if err != nil {
		return "", err
	}

	if len(rest) > 0 {
		if err := c.AppendBlocks(ctx, id, rest); err != nil {
			return id, err
		}
	}
	return id, nil
}

// UpdatePage replaces the content of an existing page or database row.
// A deleted or archived page yields ErrNotFound.
func (c *Client) UpdatePage(ctx context.Context, id string, blocks []Block) error {
	entity, err := c.getPage(ctx, id)
	if err != nil {
		return err
	}
	if entity.Archived {
		return &APIError{Method: http.MethodGet, Path: "/pages/" + id, Message: "page is archived", kind: ErrNotFound}
	}

	children, err := c.listChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if _, err := c.do(ctx, http.MethodDelete, "/blocks/"+url.PathEscape(child), nil); err != nil {
			// Already gone is fine.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
	}

	return c.AppendBlocks(ctx, id, blocks)
}

func (c *Client) listChildren(ctx context.Context, id string) ([]string, error) {
	var ids []string
	cursor := ""
	for {
		path := "/blocks/" + url.PathEscape(id) + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}

		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range gjson.GetBytes(resp, "results.#.id").Array() {
			ids = append(ids, r.String())
		}

		if !gjson.GetBytes(resp, "has_more").Bool() {
			return ids, nil
		}
		cursor = gjson.GetBytes(resp, "next_cursor").String()
		if cursor == "" {
			return ids, nil
		}
	}
}

// AppendBlocks appends blocks to a page in request-sized batches.
func (c *Client) AppendBlocks(ctx context.Context, id string, blocks []Block) error {
	path := "/blocks/" + url.PathEscape(id) + "/children"
	for _, batch := range Batches(blocks) {
		body, err := marshalRaw(nil, "children", batch)
		if err != nil {
			return err
		}
		if _, err := c.do(ctx, http.MethodPatch, path, body); err != nil {
			return err
		}
	}
	return nil
}

// CreateDatabaseRow creates a row and returns its page id.
func (c *Client) CreateDatabaseRow(ctx context.Context, databaseID string, props Properties, rel Relations) (string, error) {
	body, err := sjson.SetBytes(nil, "parent.database_id", databaseID)
	if err != nil {
		return "", err
	}
	if body, err = marshalRaw(body, "properties", props.Merge(rel)); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return "", err
	}
	return idFrom(resp, http.MethodPost, "/pages")
}

// UpdateDatabaseRow overwrites the given properties of a row.
func (c *Client) UpdateDatabaseRow(ctx context.Context, id string, props Properties, rel Relations) error {
	body, err := marshalRaw(nil, "properties", props.Merge(rel))
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), body)
	return err
}

// GetEntity fetches a page, falling back to a database with the same id.
func (c *Client) GetEntity(ctx context.Context, id string) (*Entity, error) {
	entity, err := c.getPage(ctx, id)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidRequest) {
		return nil, err
	}

	resp, dbErr := c.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(id), nil)
	if dbErr != nil {
		return nil, err
	}
	return parseEntity(resp), nil
}

func (c *Client) getPage(ctx context.Context, id string) (*Entity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return parseEntity(resp), nil
}

func parseEntity(data []byte) *Entity {
	r := gjson.ParseBytes(data)
	e := &Entity{
		ID:       r.Get("id").String(),
		Object:   r.Get("object").String(),
		URL:      r.Get("url").String(),
		Archived: r.Get("archived").Bool() || r.Get("in_trash").Bool(),
	}

	parentType := r.Get("parent.type").String()
	if parentType != "" && parentType != "workspace" {
		e.ParentID = r.Get("parent." + parentType).String()
	}

	if t, err := time.Parse(time.RFC3339, r.Get("last_edited_time").String()); err == nil {
		e.LastEditedTime = t
	}

	if e.Object == "database" {
		e.Title = joinPlainText(r.Get("title"))
		return e
	}
	r.Get("properties").ForEach(func(_, prop gjson.Result) bool {
		if prop.Get("type").String() == "title" {
			e.Title = joinPlainText(prop.Get("title"))
			return false
		}
		return true
	})
	return e
}

func joinPlainText(rts gjson.Result) string {
	var b strings.Builder
	for _, t := range rts.Get("#.plain_text").Array() {
		b.WriteString(t.String())
	}
	return b.String()
}

// FindDatabaseRow returns the first row whose rich text property equals value.
func (c *Client) FindDatabaseRow(ctx context.Context, databaseID, property, value string) (string, bool, error) {
	body, err := sjson.SetBytes(nil, "filter.property", property)
	if err != nil {
		return "", false, err
	}
	if body, err = sjson.SetBytes(body, "filter.rich_text.equals", value); err != nil {
		return "", false, err
	}
	if body, err = sjson.SetBytes(body, "page_size", 1); err != nil {
		return "", false, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", body)
	if err != nil {
		return "", false, err
	}
	id := gjson.GetBytes(resp, "results.0.id").String()
	return id, id != "", nil
}

// EnsureProperties adds the named rich text properties to a database when
// missing and returns the names it added.
func (c *Client) EnsureProperties(ctx context.Context, databaseID string, names []string) ([]string, error) {
	path := "/databases/" + url.PathEscape(databaseID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	gjson.GetBytes(resp, "properties").ForEach(func(key, _ gjson.Result) bool {
		existing[key.String()] = true
		return true
	})

	missing := make(map[string]interface{})
	var added []string
	for _, name := range names {
		if name == "" || existing[name] {
			continue
		}
		missing[name] = map[string]interface{}{"rich_text": struct{}{}}
		added = append(added, name)
	}
	if len(added) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{"properties": missing})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPatch, path, body); err != nil {
		return nil, err
	}
	return added, nil
}

// Me returns the bot user name, verifying the token.
func (c *Client) Me(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(resp, "name").String(), nil
}
