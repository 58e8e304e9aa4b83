package hh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultBaseURL                 = "https://api.hh.ru"
	defaultMinDelay                = 2 * time.Second
	defaultMaxDelay                = 4 * time.Second
	defaultTimeout                 = 15 * time.Second
	defaultMaxRetries              = 3
	defaultCircuitFailureThreshold = 5
	defaultCircuitOpen             = 5 * time.Minute

	retryBaseDelay = 500 * time.Millisecond
	retryMaxJitter = 250 * time.Millisecond

	itCategoryID = "11"
)

// Options configure a Client. Zero values fall back to production defaults.
type Options struct {
	BaseURL                 string
	UserAgent               string
	AccessToken             string
	MinDelay                time.Duration
	MaxDelay                time.Duration
	Timeout                 time.Duration
	MaxRetries              int
	CircuitFailureThreshold int
	CircuitOpen             time.Duration
	HTTPClient              *http.Client
}

// Client talks to the vacancy API. Every call passes through one serialized
// request path so concurrent callers never exceed the target's rate limit.
// Rate-window clock, failure counter, and circuit state are owned exclusively
// by that path: a single-writer state machine.
type Client struct {
	baseURL                 string
	userAgent               string
	accessToken             string
	minDelay                time.Duration
	maxDelay                time.Duration
	timeout                 time.Duration
	maxRetries              int
	circuitFailureThreshold int
	circuitOpen             time.Duration
	httpClient              *http.Client

	// sequence admits one request at a time; acquisition respects ctx.
	sequence *semaphore.Weighted

	lastRequestAt            time.Time
	consecutiveLimitFailures int
	circuitOpenedUntil       time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client from options, applying defaults for unset fields.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:                 opts.BaseURL,
		userAgent:               opts.UserAgent,
		accessToken:             opts.AccessToken,
		minDelay:                opts.MinDelay,
		maxDelay:                opts.MaxDelay,
		timeout:                 opts.Timeout,
		maxRetries:              opts.MaxRetries,
		circuitFailureThreshold: opts.CircuitFailureThreshold,
		circuitOpen:             opts.CircuitOpen,
		httpClient:              opts.HTTPClient,
		sequence:                semaphore.NewWeighted(1),
		now:                     time.Now,
		sleep:                   sleepContext,
	}

	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.minDelay == 0 {
		c.minDelay = defaultMinDelay
	}
	if c.maxDelay == 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.timeout == 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.circuitFailureThreshold == 0 {
		c.circuitFailureThreshold = defaultCircuitFailureThreshold
	}
	if c.circuitOpen == 0 {
		c.circuitOpen = defaultCircuitOpen
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	return c
}

// Search fetches one page of vacancy search results.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	query := url.Values{}
	query.Set("professional_role", params.ProfessionalRole)
	query.Set("page", strconv.Itoa(params.Page))
	perPage := params.PerPage
	if perPage == 0 {
		perPage = 100
	}
	query.Set("per_page", strconv.Itoa(perPage))
	orderBy := params.OrderBy
	if orderBy == "" {
		orderBy = "publication_time"
	}
	query.Set("order_by", orderBy)
	if !params.DateFrom.IsZero() {
		query.Set("date_from", params.DateFrom.UTC().Format(time.RFC3339))
	}
	if !params.DateTo.IsZero() {
		query.Set("date_to", params.DateTo.UTC().Format(time.RFC3339))
	}

	var resp SearchResponse
	if err := c.getJSON(ctx, "/vacancies?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Vacancy fetches the full detail record for one vacancy.
func (c *Client) Vacancy(ctx context.Context, vacancyID string) (*VacancyDetail, error) {
	var detail VacancyDetail
	if err := c.getJSON(ctx, "/vacancies/"+url.PathEscape(vacancyID), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListRoles fetches the professional-roles taxonomy.
func (c *Client) ListRoles(ctx context.Context) (*RolesResponse, error) {
	var resp RolesResponse
	if err := c.getJSON(ctx, "/professional_roles", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ITRoleIDs returns the role ids of the IT category, falling back to a name
// match when the well-known category id is absent.
func (c *Client) ITRoleIDs(ctx context.Context) ([]string, error) {
	roles, err := c.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	var category *RoleCategory
	for i := range roles.Categories {
		if roles.Categories[i].ID == itCategoryID {
			category = &roles.Categories[i]
			break
		}
	}
	if category == nil {
		for i := range roles.Categories {
			name := strings.ToLower(roles.Categories[i].Name)
			if strings.Contains(name, "информац") || strings.Contains(name, "it") {
				category = &roles.Categories[i]
				break
			}
		}
	}
	if category == nil {
		return nil, nil
	}

	ids := make([]string, 0, len(category.Roles))
	for _, role := range category.Roles {
		ids = append(ids, role.ID)
	}
	return ids, nil
}

// getJSON runs the serialized request path: circuit check, rate window,
// then the request with retries.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.sequence.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sequence.Release(1)

	if err := c.checkCircuit(); err != nil {
		return err
	}
	if err := c.waitRateWindow(ctx); err != nil {
		return err
	}

	attempt := 0
	for {
		err := c.doOnce(ctx, path, out)
		if err == nil {
			c.recordSuccess()
			return nil
		}
		c.recordFailure(err)

		if attempt >= c.maxRetries || !isRetryable(err) {
			return err
		}
		if sleepErr := c.sleep(ctx, c.retryDelay(err, attempt)); sleepErr != nil {
			return sleepErr
		}
		attempt++
	}
}

func (c *Client) doOnce(ctx context.Context, path string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("HH-User-Agent", c.userAgent)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &HTTPError{
			Status:     resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) checkCircuit() error {
	now := c.now()
	if c.circuitOpenedUntil.After(now) {
		return &CircuitOpenError{ReopenIn: c.circuitOpenedUntil.Sub(now)}
	}
	return nil
}

// waitRateWindow delays until a random min..max interval has passed since
// the previous request.
func (c *Client) waitRateWindow(ctx context.Context) error {
	now := c.now()
	if c.lastRequestAt.IsZero() {
		c.lastRequestAt = now
		return nil
	}

	target := c.lastRequestAt.Add(c.randomDelay())
	if target.After(now) {
		if err := c.sleep(ctx, target.Sub(now)); err != nil {
			return err
		}
	}
	c.lastRequestAt = c.now()
	return nil
}

func (c *Client) randomDelay() time.Duration {
	if c.maxDelay <= c.minDelay {
		return c.minDelay
	}
	spread := c.maxDelay - c.minDelay
	return c.minDelay + time.Duration(rand.Int63n(int64(spread)+1))
}

func (c *Client) recordSuccess() {
	c.consecutiveLimitFailures = 0
}

// recordFailure counts consecutive 429/403 responses and opens the circuit
// at the threshold. Any other failure resets the counter.
func (c *Client) recordFailure(err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.Status == 429 || httpErr.Status == 403) {
		c.consecutiveLimitFailures++
		if c.consecutiveLimitFailures >= c.circuitFailureThreshold {
			c.circuitOpenedUntil = c.now().Add(c.circuitOpen)
			c.consecutiveLimitFailures = 0
		}
		return
	}
	c.consecutiveLimitFailures = 0
}

func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	jitter := time.Duration(rand.Int63n(int64(retryMaxJitter)))
	return retryBaseDelay*(1<<attempt) + jitter
}

// isRetryable reports whether the failure is transient: 429/5xx responses
// and network errors retry, other 4xx and circuit-open do not.
func isRetryable(err error) bool {
	var circuitErr *CircuitOpenError
	if errors.As(err, &circuitErr) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == 429 || httpErr.Status >= 500
	}
	return err != nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
