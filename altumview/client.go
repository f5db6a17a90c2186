package altumview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// maxErrorBody is how much of a failed response body is kept in a `StatusError`.
const maxErrorBody = 512

// Client talks to the AltumView recordings API.
type Client struct {
	config     Config
	apiRoot    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new client and requests its access token.
//
// The context is used for all later token refreshes.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: config.Timeout})

	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.TokenURL,
		Scopes:       config.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenSource := credentials.TokenSource(ctx)
	token, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("could not get access token: %w", err)
	}
	logger.Debugf("Access token expires at %v", token.Expiry)

	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, tokenSource))
	httpClient.Timeout = config.Timeout

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	client := &Client{
		config:     config,
		apiRoot:    config.apiRoot(),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
	return client, nil
}

// get performs a rate-limited GET, retrying transient failures, and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	operation := func() ([]byte, error) {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		response, err := c.httpClient.Do(request)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer response.Body.Close()

		if response.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
			statusErr := &StatusError{
				URL:        url,
				StatusCode: response.StatusCode,
				Status:     response.Status,
				Body:       string(body),
			}
			if !statusErr.Retryable() {
				return nil, backoff.Permanent(statusErr)
			}
			if seconds, err := strconv.Atoi(response.Header.Get("Retry-After")); err == nil && seconds > 0 {
				logger.Debugf("Server asked us to retry %s after %d seconds", url, seconds)
				return nil, backoff.RetryAfter(seconds)
			}
			return nil, statusErr
		}

		body, err := io.ReadAll(response.Body)
		if err != nil {
			return nil, fmt.Errorf("could not read response body: %w", err)
		}
		return body, nil
	}

	exponential := backoff.NewExponentialBackOff()
	if c.config.RetryInterval > 0 {
		exponential.InitialInterval = c.config.RetryInterval
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(exponential),
		backoff.WithMaxTries(uint(c.config.MaxRetries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warnf("Request to %s failed, retrying in %v: %v", url, wait, err)
		}),
	)
}
