// Package agent adapts the external browser agent service to core.Executor.
package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/mmk-agent-api/internal/core"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

const (
	runPath = "/run"

	maxResponseBodyBytes = 256 << 20
	maxErrorBodyBytes    = 2048

	defaultRequestTimeout = 10 * time.Minute
)

// Options configures the agent Client.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	// RequestTimeout bounds one agent call in addition to the caller's context.
	RequestTimeout time.Duration

	// JMESPath expressions evaluated against the decoded response.
	// An empty ResultExpr keeps the whole response as the result.
	ScreenshotExpr string
	AnimationExpr  string
	ResultExpr     string
}

// Client runs tasks on the browser agent over HTTP.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	timeout time.Duration

	screenshotExpr string
	animationExpr  string
	resultExpr     string
}

var _ core.Executor = (*Client)(nil)

// runRequest is the body posted to the agent.
type runRequest struct {
	Task string `json:"task"`
	model.AgentParams
}

// NewClient validates the JMESPath expressions and builds a Client.
func NewClient(opts Options) (*Client, error) {
	for name, expr := range map[string]string{
		"screenshot": opts.ScreenshotExpr,
		"animation":  opts.AnimationExpr,
		"result":     opts.ResultExpr,
	} {
		if expr == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("agent: invalid %s expression %q: %w", name, expr, err)
		}
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		http:           hc,
		logger:         logger.With("component", "agent_client"),
		timeout:        timeout,
		screenshotExpr: opts.ScreenshotExpr,
		animationExpr:  opts.AnimationExpr,
		resultExpr:     opts.ResultExpr,
	}, nil
}

// Execute posts the task to the agent and converts the response into an Outcome.
func (c *Client) Execute(ctx context.Context, input string, params model.AgentParams) model.Outcome {
	if strings.TrimSpace(params.APIBase) == "" {
		return model.Failure(errors.New("agent api base is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.send(ctx, params.APIBase, runRequest{Task: input, AgentParams: params})
	if err != nil {
		return model.Failure(err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.Failure(apperrors.Execution(err, "decode agent response"))
	}

	result, err := c.extractResult(doc)
	if err != nil {
		return model.Failure(err)
	}

	var artifacts []model.RawArtifact
	for _, kind := range model.ArtifactKinds() {
		data, aerr := extractArtifact(doc, c.artifactExpr(kind))
		if aerr != nil {
			return model.Failure(fmt.Errorf("extract %s: %w", kind, aerr))
		}
		if len(data) > 0 {
			artifacts = append(artifacts, model.RawArtifact{Kind: kind, Data: data})
		}
	}

	c.logger.DebugContext(ctx, "agent run finished", "artifacts", len(artifacts), "result_bytes", len(result))
	return model.Success(result, artifacts...)
}

func (c *Client) send(ctx context.Context, apiBase string, payload runRequest) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(apiBase, "/") + runPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Execution(err, "send agent request")
	}

	body, truncated, readErr := readResponseBody(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = fmt.Errorf("close response body: %w", closeErr)
	}
	if readErr != nil {
		return nil, apperrors.Execution(readErr, "read agent response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Execution(
			fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body)),
			"agent rejected task",
		)
	}
	if truncated {
		return nil, apperrors.Execution(
			fmt.Errorf("exceeds %d bytes", maxResponseBodyBytes),
			"agent response too large",
		)
	}
	return body, nil
}

func (c *Client) artifactExpr(kind model.ArtifactKind) string {
	switch kind {
	case model.ArtifactScreenshot:
		return c.screenshotExpr
	case model.ArtifactAnimation:
		return c.animationExpr
	default:
		return ""
	}
}

func (c *Client) extractResult(doc any) (json.RawMessage, error) {
	value := doc
	if c.resultExpr != "" {
		v, err := jmespath.Search(c.resultExpr, doc)
		if err != nil {
			return nil, apperrors.Execution(err, "evaluate result expression")
		}
		value = v
	}
	if value == nil {
		return nil, nil
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, apperrors.Execution(err, "encode result")
	}
	return out, nil
}

// extractArtifact evaluates expr and base64-decodes the string it yields.
// A missing value means no artifact.
func extractArtifact(doc any, expr string) ([]byte, error) {
	if expr == "" {
		return nil, nil
	}
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected base64 string, got %T", v)
	}
	s = stripDataURL(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// stripDataURL removes a "data:<mime>;base64," prefix when present.
func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

func readResponseBody(body io.Reader) ([]byte, bool, error) {
	if body == nil {
		return nil, false, nil
	}
	limited := io.LimitReader(body, maxResponseBodyBytes+1)
	data, readErr := io.ReadAll(limited)
	truncated := len(data) > maxResponseBodyBytes
	if truncated {
		data = data[:maxResponseBodyBytes]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil && readErr == nil {
			readErr = drainErr
		}
	}
	return data, truncated, readErr
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBodyBytes {
		s = s[:maxErrorBodyBytes] + "..."
	}
	return s
}
