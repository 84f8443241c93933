package integration

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
	"sync"

	"golang.org/x/time/rate"

	"fieldlink/internal/normalize"
	"fieldlink/internal/oauth"
)

const maxAPIErrorBody = 8 << 10

// defaultPageSize keeps vendor list requests well under typical vendor
// per-request caps.
const defaultPageSize = 100

// VendorAPI is the REST client for the vendor's resource endpoints. OAuth
// endpoints live in internal/oauth; this client only ever sees bearer tokens
// handed to it per call.
//
// Every tenant gets its own rate limiter so one busy tenant cannot starve
// the rest of the vendor quota.
type VendorAPI struct {
	baseURL string
	doer    oauth.Doer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewVendorAPI(baseURL string, doer oauth.Doer) (*VendorAPI, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("integration: api base url is required")
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &VendorAPI{
		baseURL:  strings.TrimRight(baseURL, "/"),
		doer:     doer,
		limiters: map[string]*rate.Limiter{},
		limit:    rate.Limit(10),
		burst:    20,
	}, nil
}

func (a *VendorAPI) limiter(tenantID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(a.limit, a.burst)
		a.limiters[tenantID] = l
	}
	return l
}

// CallPage is one page of the vendor's call log.
type CallPage struct {
	Records    []normalize.VendorCall `json:"records"`
	NextCursor string                 `json:"next_cursor"`
}

// MessagePage is one page of the vendor's message store.
type MessagePage struct {
	Records    []normalize.VendorMessage `json:"records"`
	NextCursor string                    `json:"next_cursor"`
}

func (a *VendorAPI) ListCalls(ctx context.Context, tenantID, accessToken, cursor string) (CallPage, error) {
	var page CallPage
	err := a.getJSON(ctx, tenantID, accessToken, "/v1/calls", cursor, &page)
	return page, err
}

func (a *VendorAPI) ListMessages(ctx context.Context, tenantID, accessToken, cursor string) (MessagePage, error) {
	var page MessagePage
	err := a.getJSON(ctx, tenantID, accessToken, "/v1/messages", cursor, &page)
	return page, err
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// SendMessage posts an outbound message and returns the vendor's
// confirmation id.
func (a *VendorAPI) SendMessage(ctx context.Context, tenantID, accessToken, to, body string) (string, error) {
	if err := a.limiter(tenantID).Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(sendRequest{To: to, Body: body})
	if err != nil {
		return "", fmt.Errorf("integration: encode send request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("integration: create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.doer.Do(req)
	if err != nil {
		return "", fmt.Errorf("integration: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: readAPIErrorBody(resp.Body)}
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("integration: decode send response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("integration: vendor returned no message id")
	}
	return out.ID, nil
}

func (a *VendorAPI) getJSON(ctx context.Context, tenantID, accessToken, path, cursor string, out any) error {
	if err := a.limiter(tenantID).Wait(ctx); err != nil {
		return err
	}

	q := url.Values{"per_page": {strconv.Itoa(defaultPageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("integration: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.doer.Do(req)
	if err != nil {
		return fmt.Errorf("integration: vendor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: readAPIErrorBody(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("integration: decode vendor response: %w", err)
	}
	return nil
}

func readAPIErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxAPIErrorBody))
	return strings.TrimSpace(string(b))
}
