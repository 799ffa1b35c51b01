// Package httpclient is the outbound HTTP client used to talk to the
// Moodle web service. It adds base URL resolution, default headers,
// query-string authentication, status classification and the resilience
// policies (retry, circuit breaker, rate limit) configured per target.
//
//	c, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://moodle.example.edu",
//	    Retry:   &resilience.RetryConfig{MaxAttempts: 3},
//	}, httpclient.WithLogger(log))
//
//	resp, err := c.Do(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "/webservice/rest/server.php",
//	    Query:  url.Values{"wsfunction": {"core_webservice_get_site_info"}},
//	    Auth:   httpclient.QueryAuth("wstoken", token),
//	})
package httpclient
