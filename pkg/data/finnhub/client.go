// Package finnhub implements the engine's data-provider boundary against the
// Finnhub REST API, with response caching and quota-aware rate limiting so
// the valuation core never sees a raw API handle.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundamental_valuation/pkg/core/valuation"
	"fundamental_valuation/pkg/models"
)

const baseURL = "https://finnhub.io/api/v1"

// Config controls the client. Zero values fall back to free-tier defaults.
type Config struct {
	APIKey         string
	CallsPerMinute int           // default 60 (free tier)
	CacheTTL       time.Duration // default 15 minutes
	HTTPTimeout    time.Duration // default 20 seconds
	// MaxPeers caps how many peers are fetched per company. Each peer costs
	// three API calls, so this bounds the quota burned per symbol.
	MaxPeers int
}

// Client fetches and normalizes company snapshots. Implements
// provider.DataProvider.
type Client struct {
	cfg   Config
	http  *http.Client
	cache *ttlCache
	limit *limiter
	log   zerolog.Logger
}

// NewClient creates a Finnhub client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 60
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}
	if cfg.MaxPeers <= 0 || cfg.MaxPeers > models.MaxPeers {
		cfg.MaxPeers = 3
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.HTTPTimeout},
		cache: newTTLCache(),
		limit: newLimiter(cfg.CallsPerMinute),
		log:   log.With().Str("component", "finnhub").Logger(),
	}
}

// getJSON performs one cached, rate-limited GET against the API.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	cacheKey := endpoint + "?" + query.Encode()
	if raw, ok := c.cache.get(cacheKey); ok {
		return json.Unmarshal(raw.([]byte), out)
	}

	if err := c.limit.wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	query.Set("token", c.cfg.APIKey)
	reqURL := fmt.Sprintf("%s/%s?%s", baseURL, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.log.Warn().Str("endpoint", endpoint).Msg("rate limited by API")
		return &valuation.DataUnavailableError{What: endpoint, Reason: "rate limited"}
	}
	if resp.StatusCode != http.StatusOK {
		return &valuation.DataUnavailableError{
			What:   endpoint,
			Reason: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	c.cache.set(cacheKey, body, c.cfg.CacheTTL)
	return json.Unmarshal(body, out)
}

type profileResponse struct {
	Name                 string  `json:"name"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
	MarketCapitalization float64 `json:"marketCapitalization"` // Millions
	ShareOutstanding     float64 `json:"shareOutstanding"`     // Millions
}

type quoteResponse struct {
	Current float64 `json:"c"`
}

type seriesPoint struct {
	Period string  `json:"period"`
	V      float64 `json:"v"`
}

type metricsResponse struct {
	Metric map[string]*float64 `json:"metric"`
	Series struct {
		Annual map[string][]seriesPoint `json:"annual"`
	} `json:"series"`
}

// val returns the first present metric among the given keys, zero otherwise.
// The API reports many figures under both TTM and annual keys depending on
// coverage.
func (m *metricsResponse) val(keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m.Metric[k]; ok && v != nil {
			return *v
		}
	}
	return 0
}

// reportValue tolerates the non-numeric placeholders some filings carry in
// place of a figure; those decode to zero.
type reportValue float64

func (v *reportValue) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = reportValue(f)
	}
	return nil
}

type reportItem struct {
	Concept string      `json:"concept"`
	Value   reportValue `json:"value"`
}

type reportedFinancials struct {
	Data []struct {
		Year    int `json:"year"`
		Quarter int `json:"quarter"`
		Report  struct {
			IC []reportItem `json:"ic"`
		} `json:"report"`
	} `json:"data"`
}

type earningsEntry struct {
	Period   string   `json:"period"`
	Actual   *float64 `json:"actual"`
	Estimate *float64 `json:"estimate"`
	Surprise *float64 `json:"surprise"`
}

func (c *Client) profile(ctx context.Context, symbol string) (*profileResponse, error) {
	var p profileResponse
	if err := c.getJSON(ctx, "stock/profile2", url.Values{"symbol": {symbol}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) quote(ctx context.Context, symbol string) (*quoteResponse, error) {
	var q quoteResponse
	if err := c.getJSON(ctx, "quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) metrics(ctx context.Context, symbol string) (*metricsResponse, error) {
	var m metricsResponse
	if err := c.getJSON(ctx, "stock/metric", url.Values{"symbol": {symbol}, "metric": {"all"}}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// incomeStatement returns the concept items of the most recent annual income
// statement filing, nil when the filing history is unavailable.
func (c *Client) incomeStatement(ctx context.Context, symbol string) []reportItem {
	var fin reportedFinancials
	q := url.Values{"symbol": {symbol}, "statement": {"ic"}, "freq": {"annual"}}
	if err := c.getJSON(ctx, "stock/financials-reported", q, &fin); err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("reported financials unavailable")
		return nil
	}
	if len(fin.Data) == 0 {
		return nil
	}
	sort.Slice(fin.Data, func(i, j int) bool {
		if fin.Data[i].Year != fin.Data[j].Year {
			return fin.Data[i].Year > fin.Data[j].Year
		}
		return fin.Data[i].Quarter > fin.Data[j].Quarter
	})
	return fin.Data[0].Report.IC
}

// incomeFigures scans reported income-statement concepts for the absolute
// figures the metrics endpoint lacks. Filings report dollars; the returned
// values are in millions.
func incomeFigures(items []reportItem) (interestExpense, netIncome float64) {
	for _, item := range items {
		switch {
		case strings.Contains(item.Concept, "InterestExpense"),
			strings.Contains(item.Concept, "InterestAndDebtExpense"):
			if v := float64(item.Value); v > 0 {
				interestExpense = v / 1e6
			}
		case strings.Contains(item.Concept, "NetIncomeLoss"):
			netIncome = float64(item.Value) / 1e6
		}
	}
	return interestExpense, netIncome
}

// latestSurprise returns the most recent reported EPS surprise, nil when the
// company has no usable earnings history.
func (c *Client) latestSurprise(ctx context.Context, symbol string) *float64 {
	var entries []earningsEntry
	if err := c.getJSON(ctx, "stock/earnings", url.Values{"symbol": {symbol}}, &entries); err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("earnings unavailable")
		return nil
	}
	for _, e := range entries {
		if e.Surprise != nil {
			return e.Surprise
		}
		if e.Actual != nil && e.Estimate != nil {
			s := *e.Actual - *e.Estimate
			return &s
		}
	}
	return nil
}

// GetPeers returns the resolved peer symbols for a company, the company
// itself excluded, capped at the configured maximum.
func (c *Client) GetPeers(ctx context.Context, symbol string) ([]string, error) {
	var raw []string
	if err := c.getJSON(ctx, "stock/peers", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return nil, err
	}
	seen := map[string]bool{symbol: true}
	peers := make([]string, 0, c.cfg.MaxPeers)
	for _, p := range raw {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		peers = append(peers, p)
		if len(peers) == c.cfg.MaxPeers {
			break
		}
	}
	return peers, nil
}

// GetSnapshot assembles a normalized snapshot for a symbol, peer snapshots
// included. Implements provider.DataProvider.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	p, err := c.profile(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if p.ShareOutstanding <= 0 && p.MarketCapitalization <= 0 {
		return nil, &valuation.DataUnavailableError{What: "snapshot", Reason: "no data for " + symbol}
	}
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	m, err := c.metrics(ctx, symbol)
	if err != nil {
		return nil, err
	}

	shares := p.ShareOutstanding
	if shares <= 0 && q.Current > 0 {
		shares = p.MarketCapitalization / q.Current
	}

	snap := &models.Snapshot{
		Symbol:            symbol,
		Sector:            p.FinnhubIndustry,
		Beta:              m.val("beta"),
		CurrentPrice:      q.Current,
		SharesOutstanding: shares,
		MarketCap:         p.MarketCapitalization,
		FreeCashFlow:      m.val("freeCashFlowPerShareTTM", "freeCashFlowPerShareAnnual") * shares,
		Revenue:           m.val("revenuePerShareTTM", "revenuePerShareAnnual") * shares,
		EBITDA:            m.val("ebitdPerShareTTM", "ebitdPerShareAnnual") * shares,
		Cash:              m.val("cashPerSharePerShareQuarterly", "cashPerSharePerShareAnnual") * shares,
		EPS:               m.val("epsTTM", "epsAnnual"),
		BookValuePerShare: m.val("bookValuePerShareQuarterly", "bookValuePerShareAnnual"),
		RevenuePerShare:   m.val("revenuePerShareTTM", "revenuePerShareAnnual"),
		FCFGrowthRate:     m.val("focfCagr5Y") / 100,
		FCFHistory:        fcfHistory(m, shares),
		SurpriseEPS:       c.latestSurprise(ctx, symbol),
		AsOf:              time.Now().UTC(),
	}

	// The latest filing carries the absolute figures the metrics endpoint
	// lacks: interest expense drives the real cost of debt, net income backs
	// the EPS fallback. Best effort, the filing history is sparse for
	// non-US listings.
	snap.InterestExpense, snap.NetIncome = incomeFigures(c.incomeStatement(ctx, symbol))

	// Total debt from the debt/equity ratio and book equity; the metrics
	// endpoint reports no absolute totals.
	bvps := snap.BookValuePerShare
	if ratio := m.val("totalDebt/totalEquityQuarterly", "totalDebt/totalEquityAnnual"); ratio > 0 && bvps > 0 {
		snap.ShareholderEquity = bvps * shares
		snap.TotalDebt = ratio * snap.ShareholderEquity
	}

	peerSymbols, err := c.GetPeers(ctx, symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("peer list unavailable")
	}
	for _, peer := range peerSymbols {
		ps, err := c.peerSnapshot(ctx, peer)
		if err != nil {
			c.log.Debug().Err(err).Str("peer", peer).Msg("peer skipped")
			continue
		}
		snap.Peers = append(snap.Peers, ps)
	}

	snap.Normalize()
	return snap, nil
}

// peerSnapshot fetches the minimal fundamentals for one peer.
func (c *Client) peerSnapshot(ctx context.Context, symbol string) (models.PeerSnapshot, error) {
	p, err := c.profile(ctx, symbol)
	if err != nil {
		return models.PeerSnapshot{}, err
	}
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return models.PeerSnapshot{}, err
	}
	m, err := c.metrics(ctx, symbol)
	if err != nil {
		return models.PeerSnapshot{}, err
	}

	shares := p.ShareOutstanding
	if shares <= 0 && q.Current > 0 {
		shares = p.MarketCapitalization / q.Current
	}

	ps := models.PeerSnapshot{
		Symbol:            symbol,
		Price:             q.Current,
		EPS:               m.val("epsTTM", "epsAnnual"),
		BookValuePerShare: m.val("bookValuePerShareQuarterly", "bookValuePerShareAnnual"),
		SalesPerShare:     m.val("revenuePerShareTTM", "revenuePerShareAnnual"),
		EBITDA:            m.val("ebitdPerShareTTM", "ebitdPerShareAnnual") * shares,
		MarketCap:         p.MarketCapitalization,
		Cash:              m.val("cashPerSharePerShareQuarterly", "cashPerSharePerShareAnnual") * shares,
	}
	if ratio := m.val("totalDebt/totalEquityQuarterly", "totalDebt/totalEquityAnnual"); ratio > 0 && ps.BookValuePerShare > 0 {
		ps.TotalDebt = ratio * ps.BookValuePerShare * shares
	}
	return ps, nil
}

// fcfHistory reconstructs an absolute FCF series from the per-share annual
// series, oldest first.
func fcfHistory(m *metricsResponse, shares float64) []float64 {
	points := m.Series.Annual["freeCashFlowPerShare"]
	if len(points) == 0 || shares <= 0 {
		return nil
	}
	// The API reports newest first.
	history := make([]float64, 0, len(points))
	for i := len(points) - 1; i >= 0; i-- {
		history = append(history, points[i].V*shares)
	}
	return history
}
