// Package client is the HTTP implementation of matter.Client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 64 << 10
)

// Config holds the connection settings for the case-management API.
type Config struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client calls the case-management REST API. Every request waits on a shared
// token bucket so concurrent stages stay under the provider's rate limit.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a client. A non-positive rate disables throttling.
func New(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		log:        log,
	}
}

var _ matter.Client = (*Client)(nil)

func (c *Client) CreateMatter(ctx context.Context, in matter.MatterCreate) (matter.Matter, error) {
	var out matter.Matter
	err := c.doJSON(ctx, "create matter", http.MethodPost, "/matters", nil, in, &out)
	return out, err
}

func (c *Client) ListParticipantTypes(ctx context.Context) ([]matter.ParticipantType, error) {
	var out struct {
		Items []matter.ParticipantType `json:"items"`
	}
	err := c.doJSON(ctx, "list participant types", http.MethodGet, "/participant-types", nil, nil, &out)
	return out.Items, err
}

func (c *Client) SearchParticipants(ctx context.Context, filter matter.ParticipantFilter, page matter.Page) (matter.ParticipantPage, error) {
	var out matter.ParticipantPage
	query := pageQuery(page)
	query.Set("filter", filter.String())
	err := c.doJSON(ctx, "search participants", http.MethodGet, "/participants", query, nil, &out)
	return out, err
}

func (c *Client) CreateParticipant(ctx context.Context, in matter.Participant) (matter.Participant, error) {
	var out matter.Participant
	err := c.doJSON(ctx, "create participant", http.MethodPost, "/participants", nil, in, &out)
	return out, err
}

func (c *Client) UpdateParticipant(ctx context.Context, id string, in matter.ParticipantUpdate) error {
	return c.doJSON(ctx, "update participant", http.MethodPatch, "/participants/"+url.PathEscape(id), nil, in, nil)
}

func (c *Client) ListMatterParticipants(ctx context.Context, matterID string) ([]matter.MatterParticipant, error) {
	var out struct {
		Items []matter.MatterParticipant `json:"items"`
	}
	err := c.doJSON(ctx, "list matter participants", http.MethodGet, matterPath(matterID, "participants"), nil, nil, &out)
	return out.Items, err
}

func (c *Client) LinkParticipant(ctx context.Context, matterID, participantID, typeID string) error {
	body := map[string]string{"participantId": participantID, "typeId": typeID}
	return c.doJSON(ctx, "link participant", http.MethodPost, matterPath(matterID, "participants"), nil, body, nil)
}

func (c *Client) ListDataCollections(ctx context.Context) ([]matter.DataCollection, error) {
	var out struct {
		Items []matter.DataCollection `json:"items"`
	}
	err := c.doJSON(ctx, "list data collections", http.MethodGet, "/data-collections", nil, nil, &out)
	return out.Items, err
}

func (c *Client) CreateCollectionRecord(ctx context.Context, matterID, collectionID string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"collectionId": collectionID}
	err := c.doJSON(ctx, "create collection record", http.MethodPost, matterPath(matterID, "data-collection-records"), nil, body, &out)
	return out.ID, err
}

func (c *Client) ListRecordValues(ctx context.Context, matterID string, page matter.Page) (matter.RecordValuePage, error) {
	var out matter.RecordValuePage
	err := c.doJSON(ctx, "list record values", http.MethodGet, matterPath(matterID, "data-collection-record-values"), pageQuery(page), nil, &out)
	return out, err
}

func (c *Client) UpdateRecordValue(ctx context.Context, valueID, value string) error {
	body := map[string]string{"value": value}
	return c.doJSON(ctx, "update record value", http.MethodPatch, "/data-collection-record-values/"+url.PathEscape(valueID), nil, body, nil)
}

func (c *Client) CreateFileNote(ctx context.Context, matterID, text string) error {
	body := map[string]string{"text": text}
	return c.doJSON(ctx, "create file note", http.MethodPost, matterPath(matterID, "file-notes"), nil, body, nil)
}

func (c *Client) CreateTask(ctx context.Context, matterID string, task matter.Task) error {
	return c.doJSON(ctx, "create task", http.MethodPost, matterPath(matterID, "tasks"), nil, task, nil)
}

func (c *Client) ListFolders(ctx context.Context, matterID string) ([]matter.Folder, error) {
	var out struct {
		Items []matter.Folder `json:"items"`
	}
	err := c.doJSON(ctx, "list folders", http.MethodGet, matterPath(matterID, "folders"), nil, nil, &out)
	return out.Items, err
}

// UploadDocument stores content as a pending upload and returns its id.
func (c *Client) UploadDocument(ctx context.Context, name string, content []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/uploads", nil, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var out struct {
		ID string `json:"id"`
	}
	if err := c.send(req, "upload document", &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) LinkDocument(ctx context.Context, matterID string, link matter.DocumentLink) error {
	return c.doJSON(ctx, "link document", http.MethodPost, matterPath(matterID, "documents"), nil, link, nil)
}

func (c *Client) GetStepInfo(ctx context.Context, matterID string) (matter.StepInfo, error) {
	var out matter.StepInfo
	err := c.doJSON(ctx, "get step info", http.MethodGet, matterPath(matterID, "step"), nil, nil, &out)
	return out, err
}

func (c *Client) ChangeStep(ctx context.Context, matterID string, change matter.StepChange) error {
	return c.doJSON(ctx, "change step", http.MethodPost, matterPath(matterID, "step-changes"), nil, change, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) send(req *http.Request, op string, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("matter api request failed", "operation", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &matter.APIError{Op: op, Status: resp.StatusCode, Body: raw}
		c.log.Error("matter api error", "operation", op, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func matterPath(matterID, resource string) string {
	return "/matters/" + url.PathEscape(matterID) + "/" + resource
}

func pageQuery(page matter.Page) url.Values {
	q := url.Values{}
	if page.Number > 0 {
		q.Set("page", strconv.Itoa(page.Number))
	}
	if page.Size > 0 {
		q.Set("pageSize", strconv.Itoa(page.Size))
	}
	return q
}
