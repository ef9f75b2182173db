package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/radieske/crash-game-platform/internal/shared/apperr"
	walletdto "github.com/radieske/crash-game-platform/internal/wallet-service/dto"
)

// Client fala com o wallet-service por HTTP
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Debit(ctx context.Context, username string, cents int64, ref string) error {
	return c.move(ctx, "/wallet/debit", walletdto.MovementRequest{Username: username, AmountCents: cents, ExternalRef: ref})
}

func (c *Client) Credit(ctx context.Context, username string, cents int64, ref string) error {
	return c.move(ctx, "/wallet/credit", walletdto.MovementRequest{Username: username, AmountCents: cents, ExternalRef: ref})
}

func (c *Client) Balance(ctx context.Context, username string) (int64, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/wallet?username="+url.QueryEscape(username), nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, decodeError(res)
	}
	var out walletdto.WalletResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.BalanceCents, nil
}

func (c *Client) move(ctx context.Context, path string, body walletdto.MovementRequest) error {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return decodeError(res)
	}
	return nil
}

// decodeError traduz o corpo de erro do wallet-service para apperr
func decodeError(res *http.Response) error {
	var out walletdto.ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil || out.Code == "" {
		return fmt.Errorf("wallet http %d", res.StatusCode)
	}
	switch apperr.Code(out.Code) {
	case apperr.CodeInsufficientBalance:
		return apperr.ErrInsufficientBalance
	case apperr.CodeInvalidAmount:
		return apperr.ErrInvalidAmount
	case apperr.CodeNotFound:
		return apperr.ErrNotFound
	}
	return fmt.Errorf("wallet http %d: %s", res.StatusCode, out.Message)
}
