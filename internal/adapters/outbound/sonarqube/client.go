// Package sonarqube is the HTTP adapter for the SonarQube Web API. It
// implements domain.IssueTracker and domain.ProjectManager and exposes the
// compute engine task endpoint for the analysis runner.
package sonarqube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Retry constants.
const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
	maxErrorBody      = 512
)

var (
	_ domain.IssueTracker      = (*Client)(nil)
	_ domain.ProjectManager    = (*Client)(nil)
	_ domain.DuplicationSource = (*Client)(nil)
)

// Client talks to one SonarQube server with one set of credentials.
type Client struct {
	baseURL    string
	sq         domain.SonarQubeConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
	logger     *zap.Logger
}

// New builds a client from the resolved configuration.
func New(sq domain.SonarQubeConfig, hc domain.HTTPConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if hc.RequestsPerSecond > 0 {
		limit = rate.Limit(hc.RequestsPerSecond)
	}
	retries := hc.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(sq.URL, "/"),
		sq:         sq,
		httpClient: &http.Client{Timeout: hc.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		attempts:   uint(retries) + 1,
		retryDelay: initialRetryDelay,
		logger:     logger.Named("sonarqube"),
	}
}

// WithRetryDelay overrides the initial backoff delay.
func (c *Client) WithRetryDelay(d time.Duration) *Client {
	c.retryDelay = d
	return c
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// IssuesForFile returns open and confirmed issues on one file of a project.
// The component key uses the lower-cased project key, which is how the
// server names file components.
func (c *Client) IssuesForFile(ctx context.Context, projectKey, file string) ([]domain.Issue, error) {
	file = strings.TrimPrefix(strings.ReplaceAll(file, "\\", "/"), "./")
	params := url.Values{}
	params.Set("components", strings.ToLower(projectKey)+":"+file)
	params.Set("issueStatuses", "OPEN,CONFIRMED")
	return c.searchIssues(ctx, params)
}

// DuplicationsForFile returns the duplication groups one file takes part
// in, together with the files they span.
func (c *Client) DuplicationsForFile(ctx context.Context, projectKey, file string) (*domain.Duplications, error) {
	file = strings.TrimPrefix(strings.ReplaceAll(file, "\\", "/"), "./")
	params := url.Values{}
	params.Set("key", projectKey+":"+file)

	var resp domain.Duplications
	if err := c.getJSON(ctx, "/api/duplications/show", params, &resp); err != nil {
		return nil, fmt.Errorf("fetching duplications for %s: %w", file, err)
	}
	if resp.Files == nil {
		resp.Files = map[string]domain.DuplicationFile{}
	}
	return &resp, nil
}

// IssuesForProject returns every open and confirmed issue of a project.
func (c *Client) IssuesForProject(ctx context.Context, projectKey string) ([]domain.Issue, error) {
	params := url.Values{}
	params.Set("componentKeys", projectKey)
	params.Set("issueStatuses", "OPEN,CONFIRMED")
	return c.searchIssues(ctx, params)
}

func (c *Client) searchIssues(ctx context.Context, params url.Values) ([]domain.Issue, error) {
	var issues []domain.Issue
	for page := 1; ; page++ {
		params.Set("p", strconv.Itoa(page))
		params.Set("ps", strconv.Itoa(defaultPageSize))

		var resp issuesResponse
		if err := c.getJSON(ctx, "/api/issues/search", params, &resp); err != nil {
			return nil, fmt.Errorf("searching issues (page %d): %w", page, err)
		}
		for _, j := range resp.Issues {
			issues = append(issues, j.toDomain())
		}

		total, _, size := resp.page()
		pages := (total + size - 1) / size
		if page >= pages || len(resp.Issues) == 0 {
			break
		}
	}
	return issues, nil
}

// Rule returns rule details including the description.
func (c *Client) Rule(ctx context.Context, key string) (*domain.Rule, error) {
	params := url.Values{}
	params.Set("key", key)
	params.Set("actives", "true")

	var resp ruleResponse
	if err := c.getJSON(ctx, "/api/rules/show", params, &resp); err != nil {
		return nil, fmt.Errorf("fetching rule %s: %w", key, err)
	}
	return resp.Rule.toDomain(), nil
}

// CreateProject creates a project with the given key and display name.
func (c *Client) CreateProject(ctx context.Context, key, name string) error {
	form := url.Values{}
	form.Set("project", key)
	form.Set("name", name)
	if _, err := c.do(ctx, http.MethodPost, "/api/projects/create", form); err != nil {
		return fmt.Errorf("creating project %s: %w", key, err)
	}
	c.logger.Debug("project created", zap.String("project", key))
	return nil
}

// DeleteProject deletes a project. A missing project yields an error
// wrapping domain.ErrProjectNotFound.
func (c *Client) DeleteProject(ctx context.Context, key string) error {
	form := url.Values{}
	form.Set("project", key)
	if _, err := c.do(ctx, http.MethodPost, "/api/projects/delete", form); err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("deleting project %s: %w: %w", key, domain.ErrProjectNotFound, err)
		}
		return fmt.Errorf("deleting project %s: %w", key, err)
	}
	c.logger.Debug("project deleted", zap.String("project", key))
	return nil
}

// ProjectExists reports whether a project with exactly this key exists.
func (c *Client) ProjectExists(ctx context.Context, key string) (bool, error) {
	params := url.Values{}
	params.Set("projects", key)

	var resp projectsResponse
	if err := c.getJSON(ctx, "/api/projects/search", params, &resp); err != nil {
		return false, fmt.Errorf("searching project %s: %w", key, err)
	}
	for _, comp := range resp.Components {
		if comp.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// Task returns the state of a compute engine task.
func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	params := url.Values{}
	params.Set("id", id)

	var resp taskResponse
	if err := c.getJSON(ctx, "/api/ce/task", params, &resp); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}
	return &resp.Task, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

// retryableError marks failures worth another attempt: rate limiting,
// server errors and transport errors.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// do sends one request with retries and returns the response body. GET
// params go in the query string, POST params in a form body. A 204 or an
// empty body yields a nil slice.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.retryWithBackoff(ctx, method+" "+endpoint, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := c.newRequest(ctx, method, endpoint, params)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &retryableError{err: fmt.Errorf("%s %s: %w", method, endpoint, err)}
		}
		defer drainAndCloseBody(resp.Body)

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &retryableError{err: fmt.Errorf("reading %s response: %w", endpoint, err)}
		}
		c.logger.Debug("http request",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: check the token or username and password", domain.ErrAuth)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return &retryableError{err: apiError(resp.StatusCode, data)}
		case resp.StatusCode >= http.StatusBadRequest:
			return apiError(resp.StatusCode, data)
		case resp.StatusCode == http.StatusNoContent:
			body = nil
		default:
			body = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Request, error) {
	target := c.baseURL + endpoint
	var reqBody io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else {
		reqBody = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	if c.sq.UsesToken() {
		req.SetBasicAuth(c.sq.Token, "")
	} else {
		req.SetBasicAuth(c.sq.Username, c.sq.Password)
	}
	return req, nil
}

// retryWithBackoff executes fn with exponential backoff and jitter. Only
// retryableError failures are retried.
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(c.retryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying request",
				zap.String("operation", operation),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", c.attempts),
				zap.Error(err),
			)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var r *retryableError
			return errors.As(err, &r)
		}),
	)
	var r *retryableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}

func apiError(status int, body []byte) *domain.APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &domain.APIError{StatusCode: status, Body: text}
}

// drainAndCloseBody drains and closes an HTTP response body so the
// connection can be reused.
func drainAndCloseBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
