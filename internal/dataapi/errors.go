package dataapi

import (
	stderrors "errors"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"

	"github.com/Arkyalys/YouTubeEvent/internal/provider"
)

// classify maps structured API errors onto the provider sentinels so
// the negotiator and backoff react uniformly. Auth failures are logged
// once per key to keep a bad key from flooding the log on every tick.
func (c *Client) classify(op string, err error) error {
	var gerr *googleapi.Error
	if !stderrors.As(err, &gerr) {
		return errors.Wrap(err, "dataapi: "+op)
	}

	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return errors.Wrapf(provider.ErrQuotaExceeded, "dataapi: %s: %s", op, item.Reason)
		case "keyInvalid", "badRequest.keyInvalid", "authError", "unauthorized", "forbidden":
			return c.authFailed(op, item.Reason)
		}
	}

	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return c.authFailed(op, http.StatusText(gerr.Code))
	case http.StatusTooManyRequests:
		return errors.Wrapf(provider.ErrQuotaExceeded, "dataapi: %s", op)
	}
	return errors.Wrap(gerr, "dataapi: "+op)
}

func (c *Client) authFailed(op, reason string) error {
	c.mu.Lock()
	if !c.authLogged {
		c.authLogged = true
		c.log.Warn("dataapi: authentication failed, check the api key", "reason", reason)
	}
	c.mu.Unlock()
	return errors.Wrapf(provider.ErrAuthFailed, "dataapi: %s: %s", op, reason)
}
