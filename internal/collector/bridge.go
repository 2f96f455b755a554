package collector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/qepting91/viralscout/internal/domain"
)

// BridgeConfig describes the helper process that logs into Twitter with a
// real account and answers line-delimited JSON-RPC 2.0 on stdin/stdout.
type BridgeConfig struct {
	Command  []string
	Env      []string
	Username string
	Email    string
	Password string
	Timeout  time.Duration
}

// BridgeStrategy runs one helper process per attempt. The logged-in session
// lives only as long as that process.
type BridgeStrategy struct {
	cfg BridgeConfig
}

func NewBridgeStrategy(cfg BridgeConfig) *BridgeStrategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BridgeStrategy{cfg: cfg}
}

func (b *BridgeStrategy) Name() string { return "twitter-bridge" }

func (b *BridgeStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	var res struct {
		Tweets []map[string]any `json:"tweets"`
	}
	err := b.session(ctx, func(s *bridgeSession) error {
		return s.call("search", map[string]any{"query": q.Text, "count": limit}, &res)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RawRecord, 0, len(res.Tweets))
	for _, t := range res.Tweets {
		out = append(out, domain.RawRecord(t))
	}
	return capRecords(out, limit), nil
}

// Trend is a trending topic reported by the bridge.
type Trend struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	TweetVolume int    `json:"tweet_volume,omitempty"`
}

// Trending asks the bridge for the current trending topics.
func (b *BridgeStrategy) Trending(ctx context.Context, count int) ([]Trend, error) {
	var res struct {
		Trends []Trend `json:"trends"`
	}
	err := b.session(ctx, func(s *bridgeSession) error {
		return s.call("trending", map[string]any{"count": count}, &res)
	})
	return res.Trends, err
}

func (b *BridgeStrategy) session(ctx context.Context, fn func(*bridgeSession) error) error {
	if len(b.cfg.Command) == 0 {
		return domain.ErrStrategyNotEnabled
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	s, err := startBridge(ctx, b.cfg)
	if err != nil {
		return err
	}
	defer s.close()

	err = s.call("initialize", map[string]any{
		"username": b.cfg.Username,
		"email":    b.cfg.Email,
		"password": b.cfg.Password,
	}, nil)
	if err != nil {
		return err
	}
	return fn(s)
}

type bridgeSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  *bufio.Scanner
	nextID int
}

type rpcResponse struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Status string `json:"status"`
}

func startBridge(ctx context.Context, cfg BridgeConfig) (*bridgeSession, error) {
	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting bridge: %v", domain.ErrStrategyFailed, err)
	}

	s := &bridgeSession{cmd: cmd, stdin: stdin, lines: bufio.NewScanner(stdout)}
	s.lines.Buffer(make([]byte, 64*1024), maxBodyBytes)

	var banner rpcResponse
	if err := s.read(&banner); err != nil {
		s.close()
		return nil, err
	}
	if banner.Status != "ready" {
		s.close()
		return nil, fmt.Errorf("%w: bridge not ready: %s", domain.ErrStrategyFailed, bannerError(banner))
	}
	return s, nil
}

// call sends one request and decodes the result into out. Results carrying
// "success": false are reported as failures.
func (s *bridgeSession) call(method string, params any, out any) error {
	s.nextID++
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      s.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	if _, err := s.stdin.Write(append(req, '\n')); err != nil {
		return fmt.Errorf("%w: writing to bridge: %v", domain.ErrStrategyFailed, err)
	}

	var resp rpcResponse
	for {
		if err := s.read(&resp); err != nil {
			return err
		}
		// Skip stray lines that answer nothing we sent.
		if resp.ID != nil && *resp.ID == s.nextID {
			break
		}
		if resp.ID == nil && resp.Error != nil {
			break
		}
	}
	if resp.Error != nil {
		return fmt.Errorf("%w: bridge %s: %s", domain.ErrStrategyFailed, method, resp.Error.Message)
	}

	var status struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(resp.Result, &status); err == nil && status.Success != nil && !*status.Success {
		if status.Type == "AUTH_ERROR" || strings.Contains(strings.ToLower(status.Error), "rate limit") {
			return fmt.Errorf("%w: bridge %s: %s", domain.ErrBlocked, method, status.Error)
		}
		return fmt.Errorf("%w: bridge %s: %s", domain.ErrStrategyFailed, method, status.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%w: decoding bridge %s: %v", domain.ErrStrategyFailed, method, err)
	}
	return nil
}

func (s *bridgeSession) read(v *rpcResponse) error {
	*v = rpcResponse{}
	for s.lines.Scan() {
		line := strings.TrimSpace(s.lines.Text())
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), v); err != nil {
			continue
		}
		return nil
	}
	if err := s.lines.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: reading bridge: %v", domain.ErrStrategyFailed, err)
	}
	return fmt.Errorf("%w: bridge closed its output", domain.ErrStrategyFailed)
}

func (s *bridgeSession) close() {
	_ = s.stdin.Close()
	done := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = s.cmd.Process.Kill()
		<-done
	}
}

func bannerError(r rpcResponse) string {
	if r.Error != nil {
		return r.Error.Message
	}
	if r.Status != "" {
		return r.Status
	}
	return "unexpected banner"
}
