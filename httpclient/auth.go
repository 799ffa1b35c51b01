package httpclient

import "net/http"

// Auth decorates an outgoing request with credentials.
type Auth interface {
	apply(req *http.Request)
}

type authFunc func(*http.Request)

func (f authFunc) apply(req *http.Request) { f(req) }

// BearerAuth sends token in the Authorization header.
func BearerAuth(token string) Auth {
	return authFunc(func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
}

// QueryAuth sends the credential as a query parameter, the way the
// Moodle web service expects its wstoken.
func QueryAuth(name, value string) Auth {
	return authFunc(func(req *http.Request) {
		q := req.URL.Query()
		q.Set(name, value)
		req.URL.RawQuery = q.Encode()
	})
}

// CustomAuth applies fn to every request.
func CustomAuth(fn func(*http.Request)) Auth {
	return authFunc(fn)
}
