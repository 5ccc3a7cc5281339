package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var (
	// ErrNoMove means the oracle answered but carried no usable move token.
	ErrNoMove = errors.New("oracle returned no usable move")
	// ErrRejected means the oracle reported the query itself as failed.
	ErrRejected = errors.New("oracle rejected the query")
)

// moveTokenPattern matches a coordinate move with an optional promotion
// letter, e.g. e2e4 or e7e8q.
var moveTokenPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

const (
	MinDepth = 1
	MaxDepth = 15
)

// ClampDepth bounds a requested search depth to what the oracle supports.
func ClampDepth(depth int) int {
	if depth < MinDepth {
		return MinDepth
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}

// Reply is a settled oracle response: the suggested move in coordinate
// notation plus the evaluation attached to it.
type Reply struct {
	Move    string  `json:"move"`
	Eval    float64 `json:"eval"`
	HasEval bool    `json:"has_eval"`
	MateIn  int     `json:"mate_in"`
	HasMate bool    `json:"has_mate"`
}

// EvalText renders the evaluation for display. A forced mate wins over
// any numeric score present in the same reply.
func (r Reply) EvalText() string {
	if r.HasMate {
		n := r.MateIn
		if n < 0 {
			n = -n
		}
		return fmt.Sprintf("#%d", n)
	}
	if r.HasEval {
		return fmt.Sprintf("%+.2f", r.Eval)
	}
	return ""
}

type wireReply struct {
	Success    bool     `json:"success"`
	Evaluation *float64 `json:"evaluation"`
	Mate       *int     `json:"mate"`
	Bestmove   string   `json:"bestmove"`
	Data       string   `json:"data"`
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client queries a remote move oracle over HTTP. The position travels as
// a FEN query parameter together with the depth budget.
type Client struct {
	baseURL  string
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
	cache    *Cache
	logger   *zap.Logger
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:     &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 16},
		timeout:  12 * time.Second,
		retryMax: 3,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Suggest asks the oracle for the best move in the given position. Depth
// is clamped to the supported range before the request is issued.
func (c *Client) Suggest(ctx context.Context, fen string, depth int) (Reply, error) {
	depth = ClampDepth(depth)

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, fen, depth); err == nil && cached != nil {
			return *cached, nil
		}
	}

	body, err := c.fetch(ctx, fen, depth)
	if err != nil {
		return Reply{}, err
	}

	reply, err := parseReply(body)
	if err != nil {
		return Reply{}, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, fen, depth, reply); err != nil {
			c.logger.Warn("oracle cache write failed", zap.Error(err))
		}
	}
	return reply, nil
}

func (c *Client) fetch(ctx context.Context, fen string, depth int) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL)
	args := req.URI().QueryArgs()
	args.Set("fen", fen)
	args.Set("depth", strconv.Itoa(depth))

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("oracle request failed: %w", err)
			if attempt == attempts {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("oracle status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		body := make([]byte, len(resp.Body()))
		copy(body, resp.Body())
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("oracle request failed")
	}
	return nil, lastErr
}

func parseReply(body []byte) (Reply, error) {
	var wire wireReply
	if err := json.Unmarshal(body, &wire); err != nil {
		return Reply{}, fmt.Errorf("decode oracle response: %w", err)
	}
	if !wire.Success {
		if strings.TrimSpace(wire.Data) != "" {
			return Reply{}, fmt.Errorf("%w: %s", ErrRejected, truncate(wire.Data, 256))
		}
		return Reply{}, ErrRejected
	}

	token := extractMoveToken(wire.Bestmove)
	if token == "" {
		return Reply{}, ErrNoMove
	}

	reply := Reply{Move: token}
	if wire.Mate != nil && *wire.Mate != 0 {
		reply.MateIn = *wire.Mate
		reply.HasMate = true
	}
	if wire.Evaluation != nil {
		reply.Eval = *wire.Evaluation
		reply.HasEval = true
	}
	return reply, nil
}

// extractMoveToken pulls the coordinate move out of engine protocol text
// like "bestmove e2e4 ponder e7e5". A bare token is accepted too.
func extractMoveToken(raw string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	for i, f := range fields {
		if f == "bestmove" {
			if i+1 < len(fields) && moveTokenPattern.MatchString(fields[i+1]) {
				return fields[i+1]
			}
			return ""
		}
	}
	if len(fields) == 1 && moveTokenPattern.MatchString(fields[0]) {
		return fields[0]
	}
	return ""
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
