package bugzilla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"experimenter/internal/config"
	"experimenter/internal/experiments"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	bugVersion         = "unspecified"
	maxErrorBody       = 512
)

// HTTPDoer describes the HTTP client used by the Bugzilla client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Bugzilla REST API.
type Client struct {
	createURL  string
	commentURL func(id string) string
	detailURL  func(id string) string
	hostname   string
	product    string
	component  string
	cc         []string
	httpClient HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client from cfg.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	timeout := cfg.BugzillaTimeout()
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		createURL:  cfg.BugzillaCreateURL(),
		commentURL: cfg.BugzillaCommentURL,
		detailURL:  cfg.BugzillaDetailURL,
		hostname:   cfg.Server.Hostname,
		product:    cfg.Bugzilla.Product,
		component:  cfg.Bugzilla.Component,
		cc:         splitList(cfg.Bugzilla.CCList),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// DetailURL returns the human-facing page of bug id.
func (c *Client) DetailURL(id string) string {
	return c.detailURL(id)
}

type createRequest struct {
	Product     string   `json:"product"`
	Component   string   `json:"component"`
	Version     string   `json:"version"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	AssignedTo  string   `json:"assigned_to,omitempty"`
	CC          []string `json:"cc,omitempty"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type response struct {
	ID      json.Number `json:"id"`
	Error   bool        `json:"error"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
}

// CreateBug files the tracking bug for e and returns its id.
func (c *Client) CreateBug(ctx context.Context, e *experiments.Experiment) (string, error) {
	description, err := OverviewBody(e, c.hostname)
	if err != nil {
		return "", err
	}
	req := createRequest{
		Product:     c.product,
		Component:   c.component,
		Version:     bugVersion,
		Summary:     "[Shield] " + e.Name,
		Description: description,
		AssignedTo:  e.OwnerEmail,
		CC:          c.cc,
	}

	resp, err := c.post(ctx, "create bug", c.createURL, req)
	if err != nil {
		return "", err
	}
	if resp.Code == InvalidUserCode {
		req.AssignedTo = ""
		if resp, err = c.post(ctx, "create bug", c.createURL, req); err != nil {
			return "", err
		}
	}
	if err := resp.check("create bug"); err != nil {
		return "", err
	}
	return resp.ID.String(), nil
}

// AddComment posts the experiment details to the bug of e and returns the
// comment id.
func (c *Client) AddComment(ctx context.Context, e *experiments.Experiment) (string, error) {
	if strings.TrimSpace(e.BugzillaID) == "" {
		return "", &Error{Op: "add comment", Message: "experiment has no bugzilla id"}
	}
	body, err := DetailsBody(e, c.hostname)
	if err != nil {
		return "", err
	}
	resp, err := c.post(ctx, "add comment", c.commentURL(e.BugzillaID), commentRequest{Comment: body})
	if err != nil {
		return "", err
	}
	if err := resp.check("add comment"); err != nil {
		return "", err
	}
	return resp.ID.String(), nil
}

func (c *Client) post(ctx context.Context, op, target string, payload any) (response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return response{}, &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return response{}, &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return response{}, &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}
	if parsed.Code == 0 && resp.StatusCode >= http.StatusMultipleChoices {
		return response{}, &Error{Op: op, StatusCode: resp.StatusCode, Message: snippet(body)}
	}
	return parsed, nil
}

func (r response) check(op string) error {
	if r.Error || r.Code != 0 {
		return &Error{Op: op, Code: r.Code, Message: r.Message}
	}
	if r.ID == "" {
		return &Error{Op: op, Message: "response carried no id"}
	}
	if _, err := strconv.ParseInt(r.ID.String(), 10, 64); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("unexpected id %q", r.ID)}
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
