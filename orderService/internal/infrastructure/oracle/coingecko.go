package oracle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/shared/client/httpclient"
)

const coinGeckoSourceName = "coingecko"

// CoinGeckoSource resolves only tokens present in the CoinGecko id table.
type CoinGeckoSource struct {
	client  *httpclient.Client
	baseURL string
	now     func() time.Time
}

type coinGeckoPrice struct {
	USD           decimal.Decimal `json:"usd"`
	LastUpdatedAt int64           `json:"last_updated_at"`
}

func NewCoinGeckoSource(client *httpclient.Client, baseURL string) *CoinGeckoSource {
	return &CoinGeckoSource{
		client:  client,
		baseURL: baseURL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *CoinGeckoSource) Name() string {
	return coinGeckoSourceName
}

func (s *CoinGeckoSource) Fetch(ctx context.Context, tokens []string) (models.PriceSnapshot, error) {
	const op = "CoinGeckoSource.Fetch"

	tokensByID := make(map[string][]string, len(tokens))
	ids := make([]string, 0, len(tokens))
	for _, token := range tokens {
		id, found := coinGeckoIDs[token]
		if !found {
			continue
		}
		if _, seen := tokensByID[id]; !seen {
			ids = append(ids, id)
		}
		tokensByID[id] = append(tokensByID[id], token)
	}

	if len(ids) == 0 {
		return models.PriceSnapshot{}, nil
	}

	params := url.Values{
		"ids":                     {strings.Join(ids, ",")},
		"vs_currencies":           {"usd"},
		"include_last_updated_at": {"true"},
	}
	endpoint := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	var response map[string]coinGeckoPrice
	if err := s.client.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snapshot := make(models.PriceSnapshot, len(tokens))
	for id, price := range response {
		if !price.USD.IsPositive() {
			continue
		}

		observedAt := s.now()
		if price.LastUpdatedAt > 0 {
			observedAt = time.Unix(price.LastUpdatedAt, 0).UTC()
		}

		for _, token := range tokensByID[id] {
			snapshot[token] = models.PriceQuote{
				PriceUSD:   price.USD,
				ObservedAt: observedAt,
				Source:     coinGeckoSourceName,
			}
		}
	}

	return snapshot, nil
}
