package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/checker"
)

const (
	uuidFileName      = "agent_uuid"
	agentSecretHeader = "X-Agent-Secret"
	maxResponseBytes  = 4 << 20
)

var errRejected = errors.New("rejected by server")

type Prober interface {
	Check(ctx context.Context, kind model.MonitorKind, target string, p checker.Params) *model.CheckOutcome
}

type Client struct {
	Server        string
	Secret        string
	Name          string
	UUID          string
	MaxConcurrent int64

	http   *http.Client
	prober Prober
	clock  utils.Clock
	log    *zap.Logger
}

func NewClient(server, secret, name, id string, prober Prober, log *zap.Logger) *Client {
	return &Client{
		Server:        strings.TrimRight(server, "/"),
		Secret:        secret,
		Name:          name,
		UUID:          id,
		MaxConcurrent: 10,
		http:          utils.HttpClient,
		prober:        prober,
		clock:         utils.SystemClock,
		log:           log,
	}
}

// LoadOrCreateUUID keeps the agent identity stable across restarts.
func LoadOrCreateUUID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, uuidFileName)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}

// Run registers, then runs one check round per interval until ctx is done.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	if err := c.RegisterUntilAccepted(ctx, interval); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		resp, err := c.Round(ctx)
		switch {
		case errors.Is(err, errRejected):
			// credentials changed server side
			c.log.Warn("round rejected, registering again", zap.Error(err))
			if err := c.RegisterUntilAccepted(ctx, interval); err != nil {
				return err
			}
		case err != nil:
			c.log.Warn("round failed", zap.Error(err))
		default:
			c.log.Debug("round reported",
				zap.Int("accepted", resp.Accepted),
				zap.Int("rejected", resp.Rejected),
				zap.Strings("errors", resp.Errors))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Client) RegisterUntilAccepted(ctx context.Context, interval time.Duration) error {
	for {
		err := c.Register(ctx)
		if err == nil {
			c.log.Info("registered", zap.String("uuid", c.UUID))
			return nil
		}
		c.log.Warn("register failed, retrying", zap.Error(err), zap.Duration("in", interval))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (c *Client) Register(ctx context.Context) error {
	var resp model.AgentRegisterResponse
	return c.do(ctx, http.MethodPost, "/api/agents/register", &model.AgentRegisterRequest{
		UUID:       c.UUID,
		Name:       c.Name,
		SecretHash: utils.SHA256Hex(c.Secret),
	}, &resp)
}

func (c *Client) Assignments(ctx context.Context) ([]model.AgentMonitor, error) {
	var monitors []model.AgentMonitor
	err := c.do(ctx, http.MethodGet, "/api/agents/"+c.UUID+"/monitors", nil, &monitors)
	return monitors, err
}

// Round checks every assigned monitor concurrently and reports the results in one batch.
func (c *Client) Round(ctx context.Context) (*model.AgentReportResponse, error) {
	monitors, err := c.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch assignments: %w", err)
	}
	results := c.checkAll(ctx, monitors)

	var resp model.AgentReportResponse
	if err := c.do(ctx, http.MethodPost, "/api/agents/report", &model.AgentReport{
		UUID:    c.UUID,
		Secret:  c.Secret,
		Results: results,
	}, &resp); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return &resp, nil
}

func (c *Client) checkAll(ctx context.Context, monitors []model.AgentMonitor) []model.AgentResultItem {
	sem := semaphore.NewWeighted(c.MaxConcurrent)
	results := make([]model.AgentResultItem, len(monitors))
	var wg sync.WaitGroup
	for i := range monitors {
		if err := sem.Acquire(ctx, 1); err != nil {
			results = results[:i]
			break
		}
		wg.Add(1)
		go func(i int) {
			defer func() {
				sem.Release(1)
				wg.Done()
			}()
			m := monitors[i]
			// assignments arrive with defaults already applied
			params := checker.Resolve(m.Kind, m.Config, model.Settings{}.ProbeDefaults())
			startedAt := c.clock.Now().UTC()
			out := c.prober.Check(ctx, m.Kind, m.Target, params)
			results[i] = model.AgentResultItem{
				MonitorID:      m.ID,
				Status:         string(out.Status),
				ResponseTimeMs: out.ResponseTimeMs,
				Details:        out.Details,
				CheckedAt:      startedAt,
			}
		}(i)
	}
	wg.Wait()
	return results
}

// do sends body as JSON and decodes the result field of the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := utils.Json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Server+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(agentSecretHeader, c.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "message").String()
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %d %s", errRejected, resp.StatusCode, msg)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	result, err := utils.EnvelopeResult(data)
	switch {
	case errors.Is(err, utils.ErrGjsonNotFound) || out == nil:
		return nil
	case err != nil:
		return fmt.Errorf("%s %s: malformed response: %w", method, path, err)
	}
	return utils.Json.Unmarshal([]byte(result.Raw), out)
}
