package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI implements Client using the Claude CLI binary.
// Assumes "claude" is available in PATH unless overridden with WithClaudePath.
type ClaudeCLI struct {
	path    string
	model   string
	workdir string
	timeout time.Duration
}

// ClaudeOption configures ClaudeCLI.
type ClaudeOption func(*ClaudeCLI)

// NewClaudeCLI creates a new Claude CLI client.
func NewClaudeCLI(opts ...ClaudeOption) *ClaudeCLI {
	c := &ClaudeCLI{
		path:    "claude",
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClaudePath sets the path to the claude binary.
func WithClaudePath(path string) ClaudeOption {
	return func(c *ClaudeCLI) { c.path = path }
}

// WithModel sets the default model.
func WithModel(model string) ClaudeOption {
	return func(c *ClaudeCLI) { c.model = model }
}

// WithWorkdir sets the working directory for claude commands.
func WithWorkdir(dir string) ClaudeOption {
	return func(c *ClaudeCLI) { c.workdir = dir }
}

// WithTimeout sets the default timeout for commands.
func WithTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeCLI) { c.timeout = d }
}

// Complete implements Client.
func (c *ClaudeCLI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, c.buildArgs(req)...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}
	cmd.Stdin = strings.NewReader(renderPrompt(req))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		errMsg := stderr.String()
		return nil, NewError("complete", fmt.Errorf("%w: %s", err, errMsg), isRetryableError(errMsg))
	}

	resp := parseResponse(stdout.Bytes())
	resp.Duration = time.Since(start)
	return resp, nil
}

// buildArgs constructs the CLI arguments for a request.
func (c *ClaudeCLI) buildArgs(req CompletionRequest) []string {
	args := []string{"-p", "--output-format", "json"}

	model := req.Model
	if model == "" {
		model = c.model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	return args
}

// renderPrompt flattens the request messages into a single prompt.
// The CLI takes one prompt, so prior turns are labeled inline.
func renderPrompt(req CompletionRequest) string {
	if len(req.Messages) == 1 {
		return req.Messages[0].Content
	}

	var b strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		case RoleSystem:
			b.WriteString("System: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// cliResult is the JSON envelope the CLI prints with --output-format json.
type cliResult struct {
	Result string `json:"result"`
	Model  string `json:"model,omitempty"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// parseResponse extracts a response from CLI output.
// Falls back to treating the output as plain text if it isn't JSON.
func parseResponse(output []byte) *CompletionResponse {
	var result cliResult
	if err := json.Unmarshal(output, &result); err == nil && result.Result != "" {
		return &CompletionResponse{
			Content: strings.TrimSpace(result.Result),
			Model:   result.Model,
			Usage: TokenUsage{
				InputTokens:  result.Usage.InputTokens,
				OutputTokens: result.Usage.OutputTokens,
				TotalTokens:  result.Usage.InputTokens + result.Usage.OutputTokens,
			},
			FinishReason: "stop",
		}
	}

	return &CompletionResponse{
		Content:      strings.TrimSpace(string(output)),
		FinishReason: "stop",
	}
}

// isRetryableError checks stderr output for transient failure markers.
func isRetryableError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"rate limit", "overloaded", "timeout", "529", "503"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
