package deriv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	URL   string
	Token string
	// Symbols receive tick subscriptions on every (re)connect.
	Symbols []string

	RequestTimeout    time.Duration
	ReconnectDelay    time.Duration
	RequestsPerSecond float64
	PingInterval      time.Duration
	Dialer            *websocket.Dialer
}

func (o *Options) defaults() {
	if o.URL == "" {
		o.URL = DefaultEndpoint + "?app_id=1089"
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 20
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Handlers receive unsolicited pushes. OnTick runs on the receive loop and
// must not block; the others run on their own goroutine.
type Handlers struct {
	OnTick         func(Tick)
	OnBalance      func(Balance)
	OnPortfolio    func([]PortfolioContract)
	OnOpenContract func(OpenContract)
	OnAuthorize    func(Authorization)
	OnStateChange  func(State)
	// OnRequest observes every correlated round trip.
	OnRequest func(msgType string, elapsed time.Duration, err error)
}

type result struct {
	resp *Response
	err  error
}

// Client owns the broker websocket, the correlation table and the
// subscription set. It reconnects on its own until Close.
type Client struct {
	opts    Options
	h       Handlers
	log     zerolog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[int64]chan result
	symbols []string
	auth    *Authorization
	closed  bool

	writeMu sync.Mutex
	nextID  atomic.Int64
	state   atomic.Int32

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	live      chan struct{}
	liveOnce  sync.Once
}

// NewClient builds a client; nothing is dialed until Connect.
func NewClient(opts Options, h Handlers, log zerolog.Logger) *Client {
	opts.defaults()
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		opts:    opts,
		h:       h,
		log:     log.With().Str("component", "deriv").Logger(),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		pending: make(map[int64]chan result),
		symbols: normalizeSymbols(opts.Symbols),
		done:    make(chan struct{}),
		live:    make(chan struct{}),
	}
}

// SetHandlers replaces the push handlers. It must be called before Connect.
func (c *Client) SetHandlers(h Handlers) {
	c.h = h
}

// Connect starts the connection supervisor and waits until the first
// bootstrap completes or ctx ends. Calling it again is a no-op wait.
// Failed dials are retried with the configured delay in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.run(runCtx)
	})
	select {
	case <-c.live:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops reconnecting, closes the socket and fails pending requests.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	started := true
	c.startOnce.Do(func() {
		started = false
		close(c.done)
	})
	if started && c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

// State returns the current lifecycle stage.
func (c *Client) State() State { return State(c.state.Load()) }

// Connected reports whether the client is live.
func (c *Client) Connected() bool { return c.State() == StateLive }

// Authorization returns the last authorize response, if any.
func (c *Client) Authorization() (Authorization, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth == nil {
		return Authorization{}, false
	}
	return *c.auth, true
}

// ReadOnly reports whether the client runs without a token.
func (c *Client) ReadOnly() bool { return c.opts.Token == "" }

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.log.Info().Str("state", s.String()).Msg("connector state")
	if c.h.OnStateChange != nil {
		c.h.OnStateChange(s)
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateDisconnected)

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		c.log.Warn().Err(err).Dur("delay", c.opts.ReconnectDelay).Msg("connection lost, reconnecting")
		c.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// session dials, bootstraps and blocks until the socket drops or ctx ends.
func (c *Client) session(ctx context.Context) error {
	c.setState(StateConnecting)
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial deriv ws: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	lost := make(chan error, 1)
	go c.readLoop(conn, lost)
	defer c.dropConn(conn, ErrConnection)

	if err := c.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	c.setState(StateLive)
	c.liveOnce.Do(func() { close(c.live) })

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.pingLoop(pingCtx)

	select {
	case err := <-lost:
		return err
	case <-ctx.Done():
		c.dropConn(conn, ErrClosed)
		return ctx.Err()
	}
}

func (c *Client) bootstrap(ctx context.Context) error {
	if !c.ReadOnly() {
		c.setState(StateAuthorizing)
		resp, err := c.SendRequest(ctx, Authorize(c.opts.Token))
		if err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
		auth, err := parseAuthorization(resp.Body())
		if err != nil {
			return fmt.Errorf("decode authorize: %w", err)
		}
		c.mu.Lock()
		c.auth = &auth
		c.mu.Unlock()
		c.log.Info().Str("loginid", auth.LoginID).Str("currency", auth.Currency).Float64("balance", auth.Balance).Msg("authorized")
		if c.h.OnAuthorize != nil {
			c.h.OnAuthorize(auth)
		}
	}

	c.setState(StateSubscribing)
	for _, sym := range c.Symbols() {
		if _, err := c.SendRequest(ctx, Ticks(sym)); err != nil {
			if isConnErr(err) {
				return err
			}
			c.log.Warn().Err(err).Str("symbol", sym).Msg("tick subscription rejected")
		}
	}
	if c.ReadOnly() {
		return nil
	}
	account := []struct {
		name string
		run  func(context.Context) error
	}{
		{"balance", c.SubscribeBalance},
		{"portfolio", func(ctx context.Context) error {
			_, err := c.Portfolio(ctx)
			return err
		}},
		{"proposal_open_contract", c.SubscribeOpenContracts},
	}
	for _, step := range account {
		if err := step.run(ctx); err != nil {
			if isConnErr(err) {
				return err
			}
			c.log.Warn().Err(err).Str("request", step.name).Msg("subscription rejected")
		}
	}
	return nil
}

func isConnErr(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrClosed) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.SendRequest(ctx, Ping()); err != nil && ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("ping failed")
			}
		}
	}
}

// dropConn detaches conn and fails every pending slot with reason.
func (c *Client) dropConn(conn *websocket.Conn, reason error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]chan result)
	c.mu.Unlock()

	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()

	for _, ch := range pending {
		ch <- result{err: reason}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, lost chan<- error) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!strings.Contains(err.Error(), "use of closed network connection") {
				c.log.Warn().Err(err).Msg("deriv ws read error")
			}
			c.dropConn(conn, ErrConnection)
			lost <- fmt.Errorf("%w: %v", ErrConnection, err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg []byte) {
	resp, err := parseResponse(msg)
	if err != nil {
		c.log.Warn().Err(err).Msg("deriv ws parse error")
		return
	}

	if resp.Error == nil {
		c.route(resp)
	}
	if resp.ReqID > 0 {
		c.resolve(resp.ReqID, resp)
	}
}

// route hands push-shaped messages to their handlers regardless of
// whether they also answer a pending request.
func (c *Client) route(resp *Response) {
	body := resp.Body()
	if len(body) == 0 || string(body) == "null" {
		return
	}
	switch resp.MsgType {
	case "tick":
		if c.h.OnTick == nil {
			return
		}
		t, err := parseTick(body)
		if err != nil {
			c.log.Warn().Err(err).Msg("bad tick")
			return
		}
		c.h.OnTick(t)
	case "balance":
		if c.h.OnBalance == nil {
			return
		}
		b, err := parseBalance(body)
		if err != nil {
			c.log.Warn().Err(err).Msg("bad balance")
			return
		}
		go c.h.OnBalance(b)
	case "portfolio":
		if c.h.OnPortfolio == nil {
			return
		}
		p, err := parsePortfolio(body)
		if err != nil {
			c.log.Warn().Err(err).Msg("bad portfolio")
			return
		}
		go c.h.OnPortfolio(p)
	case "proposal_open_contract":
		if c.h.OnOpenContract == nil {
			return
		}
		oc, err := parseOpenContract(body)
		if err != nil {
			c.log.Warn().Err(err).Msg("bad open contract")
			return
		}
		if oc.ContractID == 0 {
			return
		}
		go c.h.OnOpenContract(oc)
	}
}

func (c *Client) resolve(id int64, resp *Response) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		ch <- result{resp: resp}
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// SendRequest assigns a req_id, writes req and waits for the correlated
// response. Failures come back as ErrTimeout, ErrConnection, ErrClosed,
// ctx errors or an *APIError carried alongside the response.
func (c *Client) SendRequest(ctx context.Context, req Request) (resp *Response, err error) {
	msgType := requestType(req)
	start := time.Now()
	defer func() {
		if c.h.OnRequest != nil {
			c.h.OnRequest(msgType, time.Since(start), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	id := c.nextID.Add(1)
	out := make(Request, len(req)+1)
	for k, v := range req {
		out[k] = v
	}
	out["req_id"] = id
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrConnection
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	werr := conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if werr != nil {
		c.forget(id)
		return nil, fmt.Errorf("%w: write %s: %v", ErrConnection, msgType, werr)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return r.resp, r.resp.Error
		}
		return r.resp, nil
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, msgType, c.opts.RequestTimeout)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

// Pending returns the number of outstanding correlated requests.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Symbols returns the tick subscription set.
func (c *Client) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

// SubscribeTicks adds symbol to the subscription set and subscribes now
// when live. The subscription is replayed after every reconnect.
func (c *Client) SubscribeTicks(ctx context.Context, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return errors.New("deriv: empty symbol")
	}
	c.mu.Lock()
	known := false
	for _, s := range c.symbols {
		if s == symbol {
			known = true
			break
		}
	}
	if !known {
		c.symbols = append(c.symbols, symbol)
	}
	c.mu.Unlock()

	if !c.Connected() {
		return nil
	}
	_, err := c.SendRequest(ctx, Ticks(symbol))
	return err
}

// SubscribeBalance (re)subscribes to balance pushes.
func (c *Client) SubscribeBalance(ctx context.Context) error {
	_, err := c.SendRequest(ctx, BalanceStream())
	return err
}

// SubscribeOpenContracts (re)subscribes to open contract updates.
func (c *Client) SubscribeOpenContracts(ctx context.Context) error {
	_, err := c.SendRequest(ctx, OpenContracts())
	return err
}

// Portfolio fetches the open contracts list. The result is also routed to
// OnPortfolio.
func (c *Client) Portfolio(ctx context.Context) ([]PortfolioContract, error) {
	resp, err := c.SendRequest(ctx, PortfolioRequest())
	if err != nil {
		return nil, err
	}
	return parsePortfolio(resp.Body())
}

// ContractsFor fetches the tradable contract entries for symbol.
func (c *Client) ContractsFor(ctx context.Context, symbol string) ([]ContractSpec, error) {
	resp, err := c.SendRequest(ctx, ContractsForRequest(symbol))
	if err != nil {
		return nil, err
	}
	return parseContractsFor(resp.Body())
}

// Proposal requests a price quote.
func (c *Client) Proposal(ctx context.Context, p ProposalParams) (Quote, *Response, error) {
	resp, err := c.SendRequest(ctx, Proposal(p))
	if err != nil {
		return Quote{}, resp, err
	}
	q, err := parseQuote(resp.Body())
	return q, resp, err
}

// Buy executes a quote.
func (c *Client) Buy(ctx context.Context, proposalID string, price float64) (BuyReceipt, *Response, error) {
	resp, err := c.SendRequest(ctx, Buy(proposalID, price))
	if err != nil {
		return BuyReceipt{}, resp, err
	}
	b, err := parseBuyReceipt(resp.Body())
	return b, resp, err
}

// Sell closes a contract at market.
func (c *Client) Sell(ctx context.Context, contractID int64) (SellReceipt, *Response, error) {
	resp, err := c.SendRequest(ctx, Sell(contractID))
	if err != nil {
		return SellReceipt{}, resp, err
	}
	s, err := parseSellReceipt(resp.Body())
	return s, resp, err
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
