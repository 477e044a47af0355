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

const jupiterSourceName = "jupiter"

// JupiterSource queries the Jupiter price API by mint address.
type JupiterSource struct {
	client  *httpclient.Client
	baseURL string
	now     func() time.Time
}

type jupiterResponse struct {
	Data map[string]jupiterTokenData `json:"data"`
}

type jupiterTokenData struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
}

func NewJupiterSource(client *httpclient.Client, baseURL string) *JupiterSource {
	return &JupiterSource{
		client:  client,
		baseURL: baseURL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *JupiterSource) Name() string {
	return jupiterSourceName
}

func (s *JupiterSource) Fetch(ctx context.Context, tokens []string) (models.PriceSnapshot, error) {
	const op = "JupiterSource.Fetch"

	endpoint := fmt.Sprintf("%s?%s", s.baseURL, url.Values{"ids": {strings.Join(tokens, ",")}}.Encode())

	var response jupiterResponse
	if err := s.client.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	observedAt := s.now()
	snapshot := make(models.PriceSnapshot, len(response.Data))
	for key, data := range response.Data {
		token := data.ID
		if token == "" {
			token = key
		}
		if !data.Price.IsPositive() {
			continue
		}

		snapshot[token] = models.PriceQuote{
			PriceUSD:   data.Price,
			ObservedAt: observedAt,
			Source:     jupiterSourceName,
		}
	}

	return snapshot, nil
}
