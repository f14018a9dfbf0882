package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultCoingeckoURL = "https://api.coingecko.com/api/v3"

// CoingeckoClient reads spot prices from the public simple/price endpoint.
type CoingeckoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

func NewCoingeckoClient(baseURL, apiKey string, logger *zap.Logger) *CoingeckoClient {
	if baseURL == "" {
		baseURL = DefaultCoingeckoURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoingeckoClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// SimplePrice returns the price of coinID in the vs currency.
func (c *CoingeckoClient) SimplePrice(ctx context.Context, coinID, vs string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Add("ids", coinID)
	q.Add("vs_currencies", vs)
	req.URL.RawQuery = q.Encode()

	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	c.logger.Debug("coingecko request", zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("coingecko returned status %d: %s", resp.StatusCode, string(body))
	}

	var prices map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := prices[coinID][vs]
	if !ok || !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("no %s price for %s in response", vs, coinID)
	}
	return value, nil
}
