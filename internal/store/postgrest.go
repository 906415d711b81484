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

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

type accessTokenKey struct{}

// WithAccessToken returns a context whose PostgREST requests carry token
// as the bearer instead of the service API key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func accessToken(ctx context.Context) string {
	tok, _ := ctx.Value(accessTokenKey{}).(string)
	return tok
}

// PostgREST is a Store that talks to a PostgREST-compatible HTTP endpoint.
type PostgREST struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Store = (*PostgREST)(nil)

// NewPostgREST returns a client rooted at baseURL (e.g. https://x.supabase.co/rest/v1).
// A nil client uses a default with a 15s timeout.
func NewPostgREST(baseURL, apiKey string, client *http.Client) *PostgREST {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PostgREST{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

// Close is a no-op; idle connections belong to the http.Client.
func (p *PostgREST) Close() error { return nil }

// Select issues GET /{table} with the descriptor encoded as PostgREST filters.
func (p *PostgREST) Select(ctx context.Context, d query.Descriptor) ([]models.RawRecord, error) {
	if _, err := keysFor(d.Table); err != nil {
		return nil, err
	}
	params, err := EncodeQuery(d)
	if err != nil {
		return nil, err
	}
	var out []models.RawRecord
	if err := p.do(ctx, http.MethodGet, d.Table, params, nil, "", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.RawRecord{}
	}
	return out, nil
}

// Upsert posts rec with merge-duplicates resolution on the table's key.
func (p *PostgREST) Upsert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error) {
	keys, err := keysFor(table)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if compositeKey(keys) {
		params.Set("on_conflict", strings.Join(keys, ","))
	}
	return p.write(ctx, table, params, rec, "resolution=merge-duplicates,return=representation")
}

// Insert posts rec as a new row.
func (p *PostgREST) Insert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error) {
	if _, err := keysFor(table); err != nil {
		return nil, err
	}
	return p.write(ctx, table, url.Values{}, rec, "return=representation")
}

func (p *PostgREST) write(ctx context.Context, table string, params url.Values, rec models.RawRecord, prefer string) (models.RawRecord, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	var rows []models.RawRecord
	if err := p.do(ctx, http.MethodPost, table, params, body, prefer, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("store: %s: empty representation", table)
	}
	return rows[0], nil
}

// apiError is the PostgREST error body.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (p *PostgREST) do(ctx context.Context, method, table string, params url.Values, body []byte, prefer string, dst any) error {
	u := p.baseURL + "/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("store: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	bearer := accessToken(ctx)
	if bearer == "" {
		bearer = p.apiKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("store: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var ae apiError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			msg = ae.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", apperr.ErrUnauthorized, msg)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, msg)
		}
		return fmt.Errorf("store: %s %s: %s", method, table, msg)
	}
	if dst == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("store: decode response: %w", err)
	}
	return nil
}

// EncodeQuery renders d as PostgREST query parameters.
func EncodeQuery(d query.Descriptor) (url.Values, error) {
	v := url.Values{}
	v.Set("select", "*")
	for _, p := range d.Predicates {
		if err := checkField(p.Field); err != nil {
			return nil, err
		}
		var expr string
		switch p.Op {
		case query.OpEq:
			expr = "eq." + scalar(p.Value)
		case query.OpILike:
			expr = "ilike." + ilikePattern(scalar(p.Value))
		case query.OpGte:
			expr = "gte." + scalar(p.Value)
		case query.OpLte:
			expr = "lte." + scalar(p.Value)
		case query.OpContains:
			arr, err := json.Marshal(containsValues(p.Value))
			if err != nil {
				return nil, fmt.Errorf("store: encode contains: %w", err)
			}
			expr = "cs." + string(arr)
		default:
			return nil, fmt.Errorf("store: unsupported operator %q", p.Op)
		}
		v.Add(p.Field, expr)
	}
	if d.Order != nil {
		if err := checkField(d.Order.Field); err != nil {
			return nil, err
		}
		dir := "desc"
		if d.Order.Ascending {
			dir = "asc"
		}
		v.Set("order", d.Order.Field+"."+dir)
	}
	if d.Limit > 0 {
		v.Set("limit", strconv.Itoa(d.Limit))
	}
	return v, nil
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

// ilikePattern rewrites a LIKE pattern for PostgREST, which spells the %
// wildcard as *. PostgREST turns every * into %, so a literal * can only be
// matched as the single-character wildcard _.
func ilikePattern(p string) string {
	var b strings.Builder
	escaped := false
	for _, r := range p {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '%':
			b.WriteByte('*')
		case r == '*':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
