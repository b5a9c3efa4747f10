package contract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"futurebot/internal/model"
	"futurebot/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const requestTimeout = 15 * time.Second

// Product is the metadata shared by every contract month of a product.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	ValuePerPoint float64 `json:"valuePerPoint"`
	TickSize      float64 `json:"tickSize"`
}

// Client looks up contract metadata.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: baseURL, client: client}
}

// Lookup resolves symbol into a descriptor with its point value and tick size.
func (c *Client) Lookup(ctx context.Context, token, symbol string) (model.ContractDescriptor, error) {
	var d model.ContractDescriptor
	if err := c.get(ctx, token, "/v1/contract/find", symbol, &d); err != nil {
		return d, fmt.Errorf("find contract %s: %w", symbol, err)
	}
	if d.ID == 0 {
		return d, fmt.Errorf("%w: %s", exception.ErrContractNotFound, symbol)
	}

	code := model.ProductCode(symbol)
	var p Product
	if err := c.get(ctx, token, "/v1/product/find", code, &p); err != nil {
		return d, fmt.Errorf("find product %s: %w", code, err)
	}
	if p.ValuePerPoint == 0 {
		return d, fmt.Errorf("%w: %s", exception.ErrProductNotFound, code)
	}
	if d.Symbol == "" {
		d.Symbol = symbol
	}
	d.PointValue = p.ValuePerPoint
	d.TickSize = p.TickSize
	return d, nil
}

func (c *Client) get(ctx context.Context, token, path, name string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u := c.baseURL + path + "?" + url.Values{"name": {name}}.Encode()
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return exception.ErrContractNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response").With("path", path)
	}
	return nil
}
