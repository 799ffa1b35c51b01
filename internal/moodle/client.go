// Package moodle talks to the Moodle web service on behalf of the agent's
// service account: it obtains a web-service token, keeps it in an
// encrypted cache, and reads courses, assignments and submissions.
package moodle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/httpclient"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/redis"
)

const (
	tokenPath   = "/login/token.php"
	servicePath = "/webservice/rest/server.php"

	fnSiteInfo    = "core_webservice_get_site_info"
	fnUserCourses = "core_enrol_get_users_courses"
	fnAssignments = "mod_assign_get_assignments"
	fnSubmissions = "mod_assign_get_submissions"
)

// errorcodes Moodle uses when the web-service token is no longer accepted.
var tokenErrorCodes = map[string]bool{
	"invalidtoken":    true,
	"accessexception": true,
}

// Client is a Moodle web-service client. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	tokens *TokenCache
	sites  *redis.TypedStore[SiteInfo]
	log    *logger.Logger

	httpOpts []httpclient.Option

	mu    sync.RWMutex
	token string
	site  *SiteInfo
}

// Option configures a Client.
type Option func(*Client)

// WithTokenCache shares tokens across instances through Redis.
func WithTokenCache(tc *TokenCache) Option {
	return func(c *Client) { c.tokens = tc }
}

// WithSiteInfoStore persists synchronized site info.
func WithSiteInfoStore(s *redis.TypedStore[SiteInfo]) Option {
	return func(c *Client) { c.sites = s }
}

// WithHTTPOptions passes options to the underlying HTTP client.
func WithHTTPOptions(opts ...httpclient.Option) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, opts...) }
}

// New creates a Client for cfg.
func New(cfg Config, log *logger.Logger, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, log: log.WithComponent("moodle")}
	for _, opt := range opts {
		opt(c)
	}
	hc, err := httpclient.New(cfg.HTTP, append([]httpclient.Option{httpclient.WithLogger(log)}, c.httpOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("moodle: %w", err)
	}
	c.http = hc
	return c, nil
}

func (c *Client) cacheKey() string {
	return TokenKey(c.cfg.BaseURL, c.cfg.Username)
}

// Authenticate exchanges the configured credentials for a web-service
// token and caches it.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   tokenPath,
		Query: url.Values{
			"username": {c.cfg.Username},
			"password": {c.cfg.Password},
			"service":  {c.cfg.Service},
		},
	})
	if err != nil {
		c.log.Error("Moodle authentication request failed", logger.ErrorFields("authenticate", err))
		return "", apperrors.MoodleAuthentication("token request failed").WithCause(err)
	}

	var body tokenResponse
	if err := resp.JSON(&body); err != nil {
		return "", apperrors.MoodleAuthentication("unreadable token response").WithCause(err)
	}
	if body.Error != "" {
		c.log.Error("Moodle rejected credentials", logger.Fields("username", c.cfg.Username, "reason", body.Error))
		return "", apperrors.MoodleAuthentication(body.Error)
	}
	if body.Token == "" {
		return "", apperrors.MoodleAuthentication("empty token")
	}

	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()
	if c.tokens != nil {
		if err := c.tokens.Put(ctx, c.cacheKey(), body.Token); err != nil {
			c.log.Warn("Failed to cache Moodle token", logger.ErrorFields("token_cache_put", err))
		}
	}
	c.log.Info("Authenticated with Moodle", logger.Fields("username", c.cfg.Username))
	return body.Token, nil
}

// currentToken returns a token from memory, then the cache, and reports
// whether it came from either rather than a fresh exchange.
func (c *Client) currentToken(ctx context.Context) (token string, reused bool, err error) {
	c.mu.RLock()
	token = c.token
	c.mu.RUnlock()
	if token != "" {
		return token, true, nil
	}

	if c.tokens != nil {
		cached, found, err := c.tokens.Get(ctx, c.cacheKey())
		if err != nil {
			c.log.Warn("Moodle token cache unavailable", logger.ErrorFields("token_cache_get", err))
		}
		if found {
			c.mu.Lock()
			c.token = cached
			c.mu.Unlock()
			return cached, true, nil
		}
	}

	token, err = c.Authenticate(ctx)
	return token, false, err
}

func (c *Client) forgetToken(ctx context.Context) {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if c.tokens != nil {
		_ = c.tokens.Invalidate(ctx, c.cacheKey())
	}
}

// Call invokes the web-service function with params and decodes the
// result into out. A token Moodle rejects is dropped and exchanged once.
func (c *Client) Call(ctx context.Context, function string, params url.Values, out any) error {
	token, reused, err := c.currentToken(ctx)
	if err != nil {
		return err
	}
	err = c.call(ctx, token, function, params, out)
	if !reused || !apperrors.HasCode(err, apperrors.ErrCodeMoodleAuthentication) {
		return err
	}

	c.log.Info("Moodle token rejected, re-authenticating", logger.Fields("function", function))
	c.forgetToken(ctx)
	if token, err = c.Authenticate(ctx); err != nil {
		return err
	}
	return c.call(ctx, token, function, params, out)
}

func (c *Client) call(ctx context.Context, token, function string, params url.Values, out any) error {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("moodlewsrestformat", "json")
	query.Set("wsfunction", function)

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   servicePath,
		Query:  query,
		Auth:   httpclient.QueryAuth("wstoken", token),
	})
	if httpclient.IsAuth(err) {
		c.log.Error("Moodle token is invalid or expired", logger.Fields("function", function))
		return apperrors.MoodleAuthentication("token is invalid or expired")
	}
	if err != nil {
		c.log.Error("Moodle call failed", logger.Fields("function", function, logger.FieldError, err.Error()))
		return apperrors.MoodleAPICall(function, err)
	}

	var exc exception
	if json.Unmarshal(resp.Body, &exc) == nil && exc.Exception != "" {
		if tokenErrorCodes[exc.ErrorCode] {
			return apperrors.MoodleAuthentication(exc.Message)
		}
		return apperrors.MoodleAPICall(function, errors.New(exc.Message)).WithDetail("errorcode", exc.ErrorCode)
	}
	if out == nil {
		return nil
	}
	if err := resp.JSON(out); err != nil {
		c.log.Error("Moodle returned unreadable JSON", logger.Fields("function", function, logger.FieldError, err.Error()))
		return apperrors.MoodleAPICall(function, err)
	}
	return nil
}

// SyncSiteInfo fetches site info for the service account and remembers it.
func (c *Client) SyncSiteInfo(ctx context.Context) (*SiteInfo, error) {
	var site SiteInfo
	if err := c.Call(ctx, fnSiteInfo, nil, &site); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.site = &site
	c.mu.Unlock()
	if c.sites != nil {
		if err := c.sites.Save(ctx, c.cacheKey(), &site, c.cfg.SiteInfoTTL); err != nil {
			c.log.Warn("Failed to store Moodle site info", logger.ErrorFields("site_info_save", err))
		}
	}
	return &site, nil
}

// SiteInfo returns synchronized site info from memory or the store, or
// MOODLE_SITE_INFO_MISSING.
func (c *Client) SiteInfo(ctx context.Context) (*SiteInfo, error) {
	c.mu.RLock()
	site := c.site
	c.mu.RUnlock()
	if site != nil {
		return site, nil
	}
	if c.sites != nil {
		stored, err := c.sites.Load(ctx, c.cacheKey())
		if err != nil {
			c.log.Warn("Failed to load Moodle site info", logger.ErrorFields("site_info_load", err))
		}
		if stored != nil {
			c.mu.Lock()
			c.site = stored
			c.mu.Unlock()
			return stored, nil
		}
	}
	return nil, apperrors.MoodleSiteInfoMissing()
}

// Courses lists the courses the service account is enrolled in.
func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	site, err := c.SiteInfo(ctx)
	if err != nil {
		return nil, err
	}
	var courses []Course
	params := url.Values{"userid": {strconv.Itoa(site.UserID)}}
	if err := c.Call(ctx, fnUserCourses, params, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// Assignments lists the assignments of the given courses.
func (c *Client) Assignments(ctx context.Context, courseIDs ...int) ([]Assignment, error) {
	var resp assignmentsResponse
	if err := c.Call(ctx, fnAssignments, indexed("courseids", courseIDs), &resp); err != nil {
		return nil, err
	}
	var out []Assignment
	for _, course := range resp.Courses {
		out = append(out, course.Assignments...)
	}
	return out, nil
}

// Submissions returns the submissions of each assignment, keyed by
// assignment id.
func (c *Client) Submissions(ctx context.Context, assignmentIDs ...int) (map[int][]Submission, error) {
	var resp submissionsResponse
	if err := c.Call(ctx, fnSubmissions, indexed("assignmentids", assignmentIDs), &resp); err != nil {
		return nil, err
	}
	out := make(map[int][]Submission, len(resp.Assignments))
	for _, a := range resp.Assignments {
		out[a.AssignmentID] = a.Submissions
	}
	return out, nil
}

// indexed encodes ids the way Moodle expects arrays: name[0]=1&name[1]=2.
func indexed(name string, ids []int) url.Values {
	v := make(url.Values, len(ids))
	for i, id := range ids {
		v.Set(fmt.Sprintf("%s[%d]", name, i), strconv.Itoa(id))
	}
	return v
}
