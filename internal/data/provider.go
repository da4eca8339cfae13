package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

const (
	defaultFxBaseURL = "https://api.fxtwitter.com"
	defaultVxBaseURL = "https://api.vxtwitter.com"

	// Both upstreams are free community services. Keep request rates
	// polite regardless of chat volume.
	providerRateLimit = 5  // requests per second
	providerRateBurst = 10 // burst allowance
)

// providerClient is the shared transport for the lookup providers: one
// http.Client, one rate limiter, 429 mapped to the rate limit sentinel.
type providerClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func newProviderClient(baseURL string, httpClient *http.Client) providerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return providerClient{
		baseURL: baseURL,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(providerRateLimit), providerRateBurst),
	}
}

// get fetches path and decodes the JSON body into out.
func (c providerClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return repo.ErrRateLimited
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// fxProvider is the primary lookup provider. Its tweet and profile
// responses both carry numeric author ids.
type fxProvider struct {
	client providerClient
}

// NewFxProvider creates the primary provider. Empty baseURL and nil
// httpClient select the production defaults.
func NewFxProvider(baseURL string, httpClient *http.Client) repo.IdentityProvider {
	if baseURL == "" {
		baseURL = defaultFxBaseURL
	}
	return &fxProvider{client: newProviderClient(baseURL, httpClient)}
}

func (p *fxProvider) Source() domain.IdentitySource { return domain.SourceFx }

type fxResponse struct {
	Tweet *struct {
		Text   string `json:"text"`
		Author *struct {
			ID         string `json:"id"`
			ScreenName string `json:"screen_name"`
		} `json:"author"`
	} `json:"tweet"`
	User *struct {
		ID         string `json:"id"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
}

func (p *fxProvider) Lookup(ctx context.Context, match domain.Match) (*domain.ResolvedIdentity, error) {
	path, err := lookupPath(match)
	if err != nil {
		return nil, err
	}

	var res fxResponse
	if err := p.client.get(ctx, path, &res); err != nil {
		return nil, err
	}

	switch {
	case res.Tweet != nil && res.Tweet.Author != nil:
		return &domain.ResolvedIdentity{
			UserID:   res.Tweet.Author.ID,
			Username: res.Tweet.Author.ScreenName,
			Source:   domain.SourceFx,
			Hashtags: domain.ExtractHashtags(res.Tweet.Text),
		}, nil
	case res.User != nil:
		return &domain.ResolvedIdentity{
			UserID:   res.User.ID,
			Username: res.User.ScreenName,
			Source:   domain.SourceFx,
		}, nil
	}
	return nil, fmt.Errorf("invalid fx response for %s", match.Key())
}

// vxProvider is the secondary lookup provider. Its tweet responses carry
// only the author's screen name, never the numeric id.
type vxProvider struct {
	client providerClient
}

// NewVxProvider creates the secondary provider. Empty baseURL and nil
// httpClient select the production defaults.
func NewVxProvider(baseURL string, httpClient *http.Client) repo.IdentityProvider {
	if baseURL == "" {
		baseURL = defaultVxBaseURL
	}
	return &vxProvider{client: newProviderClient(baseURL, httpClient)}
}

func (p *vxProvider) Source() domain.IdentitySource { return domain.SourceVx }

type vxResponse struct {
	UserScreenName string      `json:"user_screen_name"`
	Text           string      `json:"text"`
	ScreenName     string      `json:"screen_name"`
	ID             json.Number `json:"id"`
}

func (p *vxProvider) Lookup(ctx context.Context, match domain.Match) (*domain.ResolvedIdentity, error) {
	path, err := lookupPath(match)
	if err != nil {
		return nil, err
	}

	var res vxResponse
	if err := p.client.get(ctx, path, &res); err != nil {
		return nil, err
	}

	switch {
	case res.UserScreenName != "":
		return &domain.ResolvedIdentity{
			UserID:   "",
			Username: res.UserScreenName,
			Source:   domain.SourceVx,
			Hashtags: domain.ExtractHashtags(res.Text),
		}, nil
	case res.ScreenName != "" && res.ID != "":
		return &domain.ResolvedIdentity{
			UserID:   res.ID.String(),
			Username: res.ScreenName,
			Source:   domain.SourceVx,
		}, nil
	}
	return nil, fmt.Errorf("invalid vx response for %s", match.Key())
}

func lookupPath(match domain.Match) (string, error) {
	switch match.Kind {
	case domain.MatchTweet:
		return "/i/status/" + match.TweetID, nil
	case domain.MatchUsername:
		return "/" + match.Username, nil
	default:
		return "", fmt.Errorf("unsupported lookup kind %q", match.Kind)
	}
}
