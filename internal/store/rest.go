package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/internal/logging"
)

// maxErrorBody caps the response body kept on a failed request.
const maxErrorBody = 600

// RESTConfig configures a PostgREST backend.
type RESTConfig struct {
	// BaseURL is the project URL; requests go to BaseURL/rest/v1/<table>.
	BaseURL string

	// ServiceKey is sent as apikey and bearer token.
	ServiceKey string

	// Schema selects the exposed schema (Accept-Profile/Content-Profile).
	Schema string

	// Timeout bounds each request. Zero means 60s.
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// RESTBackend talks to a Supabase-style PostgREST endpoint.
type RESTBackend struct {
	base       string
	key        string
	schema     string
	httpClient *http.Client
}

// NewRESTBackend returns a PostgREST backend.
func NewRESTBackend(cfg RESTConfig) (*RESTBackend, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.NewConfig("NEXT_PUBLIC_SUPABASE_URL", "store URL is required")
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, errors.NewConfig("SUPABASE_SERVICE_ROLE_KEY", "service credential is required")
	}
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout, Transport: logging.NewTransport(nil)}
	}
	return &RESTBackend{base: base, key: cfg.ServiceKey, schema: schema, httpClient: client}, nil
}

func (b *RESTBackend) tableURL(table string, params url.Values) string {
	u := b.base + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (b *RESTBackend) newRequest(ctx context.Context, method, table string, params url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.tableURL(table, params), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", b.key)
	req.Header.Set("Authorization", "Bearer "+b.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Profile", b.schema)
	if method != http.MethodGet {
		req.Header.Set("Content-Profile", b.schema)
	}
	return req, nil
}

// do executes req and returns the body of a 2xx response.
func (b *RESTBackend) do(req *http.Request, op, table string) ([]byte, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &errors.StoreError{Operation: op, Table: table, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.StoreError{Operation: op, Table: table, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		body := string(data)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &errors.StoreError{Operation: op, Table: table, StatusCode: resp.StatusCode, Body: body}
	}
	return data, nil
}

// Select implements Backend.
func (b *RESTBackend) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	for _, f := range q.Filters {
		params.Add(f.Column, filterExpr(f))
	}
	if q.OrderBy != "" {
		params.Set("order", q.OrderBy+".asc")
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := b.newRequest(ctx, http.MethodGet, q.Table, params, nil)
	if err != nil {
		return nil, err
	}
	data, err := b.do(req, "GET", q.Table)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, &errors.StoreError{Operation: "GET", Table: q.Table, Err: fmt.Errorf("decoding rows: %w", err)}
	}
	return rows, nil
}

// Upsert implements Backend.
func (b *RESTBackend) Upsert(ctx context.Context, table string, rows []Row, conflictCols []string) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := rowColumns(table, rows); err != nil {
		return err
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding %s rows: %w", table, err)
	}

	params := url.Values{}
	if len(conflictCols) > 0 {
		params.Set("on_conflict", strings.Join(conflictCols, ","))
	}
	req, err := b.newRequest(ctx, http.MethodPost, table, params, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	_, err = b.do(req, "UPSERT", table)
	return err
}

// Delete implements Backend.
func (b *RESTBackend) Delete(ctx context.Context, table, column string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	if err := (Query{Table: table, Filters: []Filter{In(column, values)}}).Validate(); err != nil {
		return err
	}

	params := url.Values{}
	params.Set(column, filterExpr(In(column, values)))
	req, err := b.newRequest(ctx, http.MethodDelete, table, params, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	_, err = b.do(req, "DELETE", table)
	return err
}

// Close implements Backend.
func (b *RESTBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// filterExpr renders a PostgREST filter value: eq.v or in.("a","b").
func filterExpr(f Filter) string {
	if f.Op == OpEq {
		return "eq." + f.Values[0]
	}
	quoted := make([]string, len(f.Values))
	for i, v := range f.Values {
		quoted[i] = quoteListValue(v)
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

// quoteListValue double-quotes a value inside in.(...), escaping quotes and
// backslashes, so commas and parentheses in values survive.
func quoteListValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
