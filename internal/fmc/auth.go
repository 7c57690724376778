package fmc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/telhawk-systems/fmc-connections/internal/logging"
)

const (
	// AuthPath is the token generation endpoint.
	AuthPath = "/api/fmc_platform/v1/auth/generatetoken"

	HeaderAccessToken = "X-auth-access-token"
	HeaderDomainUUID  = "DOMAIN_UUID"

	// DefaultDomainUUID is the Global domain, used when the appliance
	// does not name one.
	DefaultDomainUUID = "e276abec-e0f2-11e3-8169-6d9ed49b625f"
)

// Credentials identify the appliance and the API user. They do not
// change for the lifetime of a run.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// BaseURL returns the HTTPS base URL of the appliance.
func (c Credentials) BaseURL() string {
	return BaseURL(c.Host, c.Port)
}

// Session is the result of a successful authentication. It is a value:
// callers pass it to each request instead of mutating client defaults.
type Session struct {
	Token      string
	DomainUUID string
}

func (s Session) apply(req *http.Request) {
	req.Header.Set(HeaderAccessToken, s.Token)
}

// Authenticate requests an access token with basic auth. The appliance
// answers 204 with the token and domain in response headers; any other
// outcome is an *AuthenticationError. There is no retry.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+AuthPath, http.NoBody)
	if err != nil {
		return Session{}, &AuthenticationError{Err: err}
	}
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("token request failed", logging.Endpoint(AuthPath), logging.Error(err))
		return Session{}, &AuthenticationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("token request rejected", logging.Endpoint(AuthPath), logging.Status(resp.StatusCode))
		return Session{}, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	token := resp.Header.Get(HeaderAccessToken)
	if token == "" {
		return Session{}, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Err:        errors.New("response has no " + HeaderAccessToken + " header"),
		}
	}

	domain := resp.Header.Get(HeaderDomainUUID)
	if domain == "" {
		domain = DefaultDomainUUID
	}

	c.logger.Debug("authenticated", logging.Status(resp.StatusCode), logging.Domain(domain))
	return Session{Token: token, DomainUUID: domain}, nil
}
