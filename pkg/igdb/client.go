package igdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"gametrack/pkg/logging"
)

// ErrTooManyRetries is returned when a request keeps failing after the
// per-request retry budget is exhausted. It is fatal to the current
// refresh run.
var ErrTooManyRetries = errors.New("too many failed attempts")

// gameFields is the crawl field set. Genre/platform/theme references come
// back as bare ids; involved_companies are partially expanded so the
// publisher flag is available.
const gameFields = "id, name, summary, cover.url, first_release_date, " +
	"aggregated_rating, rating_count, genres, platforms, " +
	"involved_companies.publisher, involved_companies.company, themes"

// detailFields is the richer field set used for single-game lookups.
const detailFields = "id, name, summary, storyline, first_release_date, cover.url, " +
	"screenshots.url, platforms.name, genres.name, " +
	"involved_companies.company.name, involved_companies.developer, " +
	"involved_companies.publisher, videos.video_id, " +
	"aggregated_rating, rating_count, themes.name, game_modes.name"

// TokenProvider supplies a bearer token for API requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ClientConfig configures the IGDB client's retry and pacing behavior.
type ClientConfig struct {
	BaseURL        string
	MaxRetries     int           // attempts per request before giving up (default: 10)
	Timeout        time.Duration // per-request HTTP timeout (default: 30s)
	RateLimit      time.Duration // minimum delay between API calls (default: 250ms)
	RetryAfterWait time.Duration // fallback wait when a 429 carries no Retry-After (default: 30s)
	BackoffBase    time.Duration // linear backoff unit for transient errors (default: 3s)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "https://api.igdb.com/v4",
		MaxRetries:     10,
		Timeout:        30 * time.Second,
		RateLimit:      250 * time.Millisecond,
		RetryAfterWait: 30 * time.Second,
		BackoffBase:    3 * time.Second,
	}
}

// Client handles API communication with IGDB. All queries are POSTs with an
// Apicalypse body. Rate limiting (429) and transient network errors are
// retried here and never surface to callers until the retry budget runs out.
type Client struct {
	baseURL    string
	clientID   string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	config     *ClientConfig
	logger     *logging.Logger

	// sleep is swapped out in tests to observe backoff behavior
	sleep func(time.Duration)
}

// NewClient creates a new IGDB API client.
func NewClient(clientID string, tokens TokenProvider, config *ClientConfig, logger *logging.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if logger == nil {
		logger = logging.NewLogger("error", "json")
	}

	return &Client{
		baseURL:    config.BaseURL,
		clientID:   clientID,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(config.RateLimit), 1),
		config:     config,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// post is the core request method. It retries the same request on 429 using
// the server-provided Retry-After delay, and on transient errors with a
// linearly increasing backoff, up to MaxRetries attempts.
func (c *Client) post(ctx context.Context, endpoint string, body string) ([]byte, error) {
	url := c.baseURL + endpoint

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring token: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Client-ID", c.clientID)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "text/plain")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.WithIGDB().WithFields(map[string]interface{}{
				"endpoint": endpoint,
				"attempt":  attempt,
				"error":    err.Error(),
			}).Warn("transient request error, retrying")
			c.sleep(c.config.BackoffBase * time.Duration(attempt))
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header, c.config.RetryAfterWait)
			lastErr = fmt.Errorf("rate limited (429)")
			c.logger.WithIGDB().WithFields(map[string]interface{}{
				"endpoint":     endpoint,
				"attempt":      attempt,
				"wait_seconds": wait.Seconds(),
			}).Warn("rate limited, honoring Retry-After")
			c.sleep(wait)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			c.logger.APIError("igdb_client", endpoint, lastErr, resp.StatusCode)
			c.sleep(c.config.BackoffBase * time.Duration(attempt))
			continue
		}

		if readErr != nil {
			lastErr = fmt.Errorf("reading response: %w", readErr)
			c.sleep(c.config.BackoffBase * time.Duration(attempt))
			continue
		}

		return data, nil
	}

	return nil, fmt.Errorf("%w (%d): %v", ErrTooManyRetries, c.config.MaxRetries, lastErr)
}

// retryAfter parses the Retry-After header, falling back to a fixed wait.
func retryAfter(header http.Header, fallback time.Duration) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Games fetches one page of the catalog, sorted by descending popularity so
// the most relevant records land first in the snapshot.
func (c *Client) Games(ctx context.Context, offset, limit int) ([]Game, error) {
	body := fmt.Sprintf("fields %s;\nsort popularity desc;\nlimit %d;\noffset %d;", gameFields, limit, offset)

	data, err := c.post(ctx, "/games", body)
	if err != nil {
		return nil, fmt.Errorf("fetching games page at offset %d: %w", offset, err)
	}

	var games []Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, fmt.Errorf("parsing games response: %w", err)
	}
	return games, nil
}

// PopularityPrimitives fetches popularity values for a batch of game ids,
// restricted to a single popularity type.
func (c *Client) PopularityPrimitives(ctx context.Context, ids []int64, popularityType int) ([]PopularityPrimitive, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idList := make([]string, len(ids))
	for i, id := range ids {
		idList[i] = strconv.FormatInt(id, 10)
	}
	body := fmt.Sprintf(
		"fields game_id,value,popularity_type;\nwhere game_id = (%s) & popularity_type = %d;\nlimit %d;",
		strings.Join(idList, ","), popularityType, len(ids),
	)

	data, err := c.post(ctx, "/popularity_primitives", body)
	if err != nil {
		return nil, fmt.Errorf("fetching popularity primitives: %w", err)
	}

	var primitives []PopularityPrimitive
	if err := json.Unmarshal(data, &primitives); err != nil {
		return nil, fmt.Errorf("parsing popularity response: %w", err)
	}
	return primitives, nil
}

// CountGames returns the total number of games the catalog reports.
// Best effort: callers treat a failure as "total unknown", never fatal.
func (c *Client) CountGames(ctx context.Context) (int, error) {
	data, err := c.post(ctx, "/games/count", "")
	if err != nil {
		return 0, fmt.Errorf("fetching game count: %w", err)
	}

	var count countResponse
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("parsing count response: %w", err)
	}
	return count.Count, nil
}

// GameByID fetches the detail record for a single game, or nil if the id is
// unknown to the catalog.
func (c *Client) GameByID(ctx context.Context, id int64) (*Game, error) {
	body := fmt.Sprintf("fields %s;\nwhere id = %d;\nlimit 1;", detailFields, id)

	data, err := c.post(ctx, "/games", body)
	if err != nil {
		return nil, fmt.Errorf("fetching game %d: %w", id, err)
	}

	var games []Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, fmt.Errorf("parsing game response: %w", err)
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

// Filters fetches the available genre/platform/publisher filter options.
// Each list is best effort; a failed sub-query yields an empty list.
func (c *Client) Filters(ctx context.Context) (*FilterOptions, error) {
	options := &FilterOptions{}

	options.Genres = c.filterOptions(ctx, "/genres", "fields id,name; limit 500;")
	options.Platforms = c.filterOptions(ctx, "/platforms", "fields id,name; limit 500;")
	options.Publishers = c.filterOptions(ctx, "/companies", "fields id,name; where published = true; limit 500;")

	return options, nil
}

func (c *Client) filterOptions(ctx context.Context, endpoint, body string) []FilterOption {
	data, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.WithIGDB().WithError(err).WithField("endpoint", endpoint).Warn("filter options unavailable")
		return nil
	}

	var options []FilterOption
	if err := json.Unmarshal(data, &options); err != nil {
		c.logger.WithIGDB().WithError(err).WithField("endpoint", endpoint).Warn("failed to parse filter options")
		return nil
	}
	return options
}
