// Package venue implements the prediction-market venue REST client.
//
// Every response arrives in a numeric-errno envelope; errno 0 is the only
// success signal, anything else decodes to a VenueError. Transport-level
// 5xx failures are retried by the underlying client, business errnos are
// never retried.
package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/config"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/logging"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/resilience"
	"github.com/Shilder25/opinion-arena/pkg/utils"
)

// Client is the venue REST API client.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	logger  zerolog.Logger
}

// envelope is the venue's uniform response wrapper.
type envelope struct {
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg"`
}

// NewClient creates a venue client with retry on transport failures and
// a circuit breaker tripped by consecutive transport outages. Business
// errnos never count against the breaker.
func NewClient(cfg config.VenueConfig, logger zerolog.Logger) *Client {
	breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig())

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", cfg.APIKey)

	httpClient.OnBeforeRequest(func(_ *resty.Client, _ *resty.Request) error {
		return breaker.Allow()
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		if r.StatusCode() >= 500 {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
		logging.LogAPICall(logger, r.Request.Method, r.Request.URL, r.Time(), nil)
		return nil
	})
	httpClient.OnError(func(req *resty.Request, err error) {
		if !errors.Is(err, resilience.ErrBreakerOpen) {
			breaker.RecordFailure()
		}
		logging.LogAPICall(logger, req.Method, req.URL, 0, err)
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() resilience.BreakerState {
	return c.breaker.State()
}

// checkEnvelope maps a non-zero errno to a VenueError.
func checkEnvelope(operation string, env envelope) error {
	if env.Errno == 0 {
		return nil
	}
	return apperrors.NewVenueError(env.Errno, operation, env.Errmsg)
}

// EnableTrading activates the trading session for the custody wallet.
// Called once at the start of every cycle.
func (c *Client) EnableTrading(ctx context.Context) error {
	var result struct {
		envelope
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Post("/openapi/trade/enable")
	if err != nil {
		return apperrors.NewTransientError("enable trading", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return apperrors.NewTransientError("enable trading", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return checkEnvelope("enable trading", result.envelope)
}

// marketDTO is the venue's market wire shape. Status arrives either as an
// enum string or a bare integer depending on endpoint version.
type marketDTO struct {
	MarketID       int64       `json:"market_id"`
	Title          string      `json:"title"`
	Category       string      `json:"category"`
	Status         interface{} `json:"status"`
	YesTokenID     string      `json:"yes_token_id"`
	NoTokenID      string      `json:"no_token_id"`
	AskPrice       float64     `json:"ask_price"`
	BidPrice       float64     `json:"bid_price"`
	Volume         float64     `json:"volume"`
	ResolutionTime int64       `json:"resolution_time"`
}

// numeric status codes used by the older endpoint version.
var numericStatus = map[int]models.MarketStatus{
	1: models.MarketActivated,
	2: models.MarketResolved,
	3: models.MarketClosed,
	4: models.MarketCancelled,
}

// NormalizeStatus maps the venue's enum-or-integer status to the domain
// enum. Unknown values come back as-is so the tradability check rejects
// them instead of a parse failure dropping the market silently.
func NormalizeStatus(raw interface{}) models.MarketStatus {
	switch v := raw.(type) {
	case string:
		return models.MarketStatus(v)
	case float64:
		if st, ok := numericStatus[int(v)]; ok {
			return st
		}
	case int:
		if st, ok := numericStatus[v]; ok {
			return st
		}
	}
	return models.MarketStatus(fmt.Sprintf("%v", raw))
}

func (d *marketDTO) toModel() models.Market {
	m := models.Market{
		MarketID:   d.MarketID,
		Title:      d.Title,
		Category:   d.Category,
		Status:     NormalizeStatus(d.Status),
		YesTokenID: d.YesTokenID,
		NoTokenID:  d.NoTokenID,
		AskPrice:   d.AskPrice,
		BidPrice:   d.BidPrice,
		Volume:     d.Volume,
	}
	if d.ResolutionTime > 0 {
		m.ResolutionTime = time.Unix(d.ResolutionTime, 0).UTC()
	}
	return m
}

// GetMarkets fetches one page of markets.
func (c *Client) GetMarkets(ctx context.Context, limit, offset int) ([]models.Market, error) {
	var result struct {
		envelope
		Result struct {
			List []marketDTO `json:"list"`
		} `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetQueryParam("offset", fmt.Sprintf("%d", offset)).
		SetResult(&result).
		Get("/openapi/market/list")
	if err != nil {
		return nil, apperrors.NewTransientError("get markets", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransientError("get markets", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("get markets", result.envelope); err != nil {
		return nil, err
	}

	markets := make([]models.Market, 0, len(result.Result.List))
	for i := range result.Result.List {
		markets = append(markets, result.Result.List[i].toModel())
	}
	return markets, nil
}

// GetMarket fetches the detail view of one market, including token IDs.
func (c *Client) GetMarket(ctx context.Context, marketID int64) (*models.Market, error) {
	var result struct {
		envelope
		Result marketDTO `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/openapi/market/%d", marketID))
	if err != nil {
		return nil, apperrors.NewTransientError("get market", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, apperrors.NewVenueError(apperrors.VenueErrNotFound, "get market", "market not found")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransientError("get market", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("get market", result.envelope); err != nil {
		return nil, err
	}
	m := result.Result.toModel()
	return &m, nil
}

// PriceLevel is one side of the book at one price.
type PriceLevel struct {
	Price float64 `json:"price,string"`
	Size  float64 `json:"size,string"`
}

// Orderbook is the L2 book for one token.
type Orderbook struct {
	TokenID string       `json:"token_id"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
}

// BestAsk returns the lowest ask, or 0 when the side is empty.
func (o *Orderbook) BestAsk() float64 {
	if len(o.Asks) == 0 {
		return 0
	}
	best := o.Asks[0].Price
	for _, l := range o.Asks[1:] {
		if l.Price < best {
			best = l.Price
		}
	}
	return best
}

// AskDepth returns the resting size at the best ask price, 0 when the
// side is empty. A quoted ask with no depth cannot actually be lifted.
func (o *Orderbook) AskDepth() float64 {
	best := o.BestAsk()
	if best == 0 {
		return 0
	}
	var depth float64
	for _, l := range o.Asks {
		if l.Price == best {
			depth += l.Size
		}
	}
	return depth
}

// BestBid returns the highest bid, or 0 when the side is empty.
func (o *Orderbook) BestBid() float64 {
	if len(o.Bids) == 0 {
		return 0
	}
	best := o.Bids[0].Price
	for _, l := range o.Bids[1:] {
		if l.Price > best {
			best = l.Price
		}
	}
	return best
}

// GetOrderbook fetches the book for a single token.
func (c *Client) GetOrderbook(ctx context.Context, tokenID string) (*Orderbook, error) {
	var result struct {
		envelope
		Result Orderbook `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/openapi/token/orderbook")
	if err != nil {
		return nil, apperrors.NewTransientError("get orderbook", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransientError("get orderbook", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("get orderbook", result.envelope); err != nil {
		return nil, err
	}
	result.Result.TokenID = tokenID
	return &result.Result, nil
}

// OrderRequest is a signed limit-order submission.
type OrderRequest struct {
	MarketID int64
	TokenID  string
	Side     string // BUY
	Price    float64
	Amount   float64
}

// PlaceOrder submits a signed order. Price goes on the wire as a decimal
// string with at most 3 places, amount with at most 2. check_approval
// makes the venue verify the token allowance before accepting.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	body := map[string]interface{}{
		"market_id":      req.MarketID,
		"token_id":       req.TokenID,
		"side":           req.Side,
		"price":          utils.FormatPrice(req.Price),
		"amount":         utils.FormatAmount(req.Amount),
		"check_approval": true,
	}
	var result struct {
		envelope
		Result struct {
			OrderID string `json:"order_id"`
		} `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/openapi/order/create")
	if err != nil {
		return "", apperrors.NewTransientError("place order", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", apperrors.NewTransientError("place order", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("place order", result.envelope); err != nil {
		return "", err
	}
	c.logger.Info().Str("order_id", result.Result.OrderID).Int64("market_id", req.MarketID).Msg("Order placed")
	return result.Result.OrderID, nil
}

// CancelOrder cancels one open order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	var result struct {
		envelope
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"order_id": orderID}).
		SetResult(&result).
		Post("/openapi/order/cancel")
	if err != nil {
		return apperrors.NewTransientError("cancel order", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return apperrors.NewTransientError("cancel order", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return checkEnvelope("cancel order", result.envelope)
}

// Redeem claims the payout for a resolved market position. Requires gas
// in the custody wallet; the venue reports low gas as a business errno.
func (c *Client) Redeem(ctx context.Context, marketID int64) error {
	var result struct {
		envelope
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]int64{"market_id": marketID}).
		SetResult(&result).
		Post("/openapi/market/redeem")
	if err != nil {
		return apperrors.NewTransientError("redeem", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return apperrors.NewTransientError("redeem", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return checkEnvelope("redeem", result.envelope)
}

// Fill is one executed trade on the account.
type Fill struct {
	OrderID  string  `json:"order_id"`
	MarketID int64   `json:"market_id"`
	TokenID  string  `json:"token_id"`
	Price    float64 `json:"price,string"`
	Amount   float64 `json:"amount,string"`
	FilledAt int64   `json:"filled_at"`
}

// GetMyTrades fetches the account's executed trades.
func (c *Client) GetMyTrades(ctx context.Context) ([]Fill, error) {
	var result struct {
		envelope
		Result struct {
			List []Fill `json:"list"`
		} `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/openapi/trade/list")
	if err != nil {
		return nil, apperrors.NewTransientError("get trades", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransientError("get trades", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("get trades", result.envelope); err != nil {
		return nil, err
	}
	return result.Result.List, nil
}

// Position is one open or resolved position on the account.
type Position struct {
	MarketID int64   `json:"market_id"`
	TokenID  string  `json:"token_id"`
	Size     float64 `json:"size,string"`
	AvgPrice float64 `json:"avg_price,string"`
	Resolved bool    `json:"resolved"`
	Won      bool    `json:"won"`
	Payout   float64 `json:"payout,string"`
}

// GetMyPositions fetches the account's positions.
func (c *Client) GetMyPositions(ctx context.Context) ([]Position, error) {
	var result struct {
		envelope
		Result struct {
			List []Position `json:"list"`
		} `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/openapi/position/list")
	if err != nil {
		return nil, apperrors.NewTransientError("get positions", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransientError("get positions", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("get positions", result.envelope); err != nil {
		return nil, err
	}
	return result.Result.List, nil
}

// Balance is one token balance on the custody wallet.
type Balance struct {
	Token  string  `json:"token"`
	Amount float64 `json:"amount,string"`
}

// GetMyBalances fetches the custody wallet balances.
func (c *Client) GetMyBalances(ctx context.Context) ([]Balance, error) {
	var result struct {
		envelope
		Result struct {
			List []Balance `json:"list"`
		} `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/openapi/balance/list")
	if err != nil {
		return nil, apperrors.NewTransientError("get balances", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperrors.NewTransientError("get balances", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if err := checkEnvelope("get balances", result.envelope); err != nil {
		return nil, err
	}
	return result.Result.List, nil
}
