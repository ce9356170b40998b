package relay

import (
	"net/http"
)

// Authenticator applies credentials to an outgoing request. Implementations
// decide the scheme (header token, basic auth, signed query); the connector
// only cares that Apply succeeds before the request leaves. Token refresh
// flows live behind this interface too: an implementation may fetch or renew
// its credential inside Apply.
type Authenticator interface {
	Apply(req *http.Request) error
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(req *http.Request) error

// Apply implements Authenticator.
func (f AuthenticatorFunc) Apply(req *http.Request) error {
	return f(req)
}

// BearerToken authenticates with an Authorization: Bearer header.
func BearerToken(token string) Authenticator {
	return AuthenticatorFunc(func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// APIKey authenticates by setting key under the given header name.
func APIKey(header, key string) Authenticator {
	return AuthenticatorFunc(func(req *http.Request) error {
		req.Header.Set(header, key)
		return nil
	})
}

// BasicAuth authenticates with HTTP basic credentials.
func BasicAuth(username, password string) Authenticator {
	return AuthenticatorFunc(func(req *http.Request) error {
		req.SetBasicAuth(username, password)
		return nil
	})
}
