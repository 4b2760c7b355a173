// Package agent is the boundary between the engine and the external
// reasoning process. A Generator takes a structured request and returns the
// model's raw text; everything downstream of that text goes through the
// parse package. The engine never talks to a vendor API directly; the
// CommandGenerator shells out to a user-configured command, so any CLI that
// reads JSON on stdin and writes text on stdout can serve as the model.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"time"
)

// maxOutputSize caps captured stdout/stderr from the agent command (10MB).
const maxOutputSize = 10 * 1024 * 1024

// Request is the structured payload handed to a Generator for one call.
type Request struct {
	Phase        string `json:"phase"`
	Role         string `json:"role"`
	Round        int    `json:"round"`
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
	SchemaHint   string `json:"schemaHint"`
}

// Generator produces a raw text response for a structured request.
type Generator interface {
	GenerateStructured(ctx context.Context, req Request) (string, error)
}

// CommandGenerator runs a configured command per call, feeding the request
// as JSON on stdin and reading the response from stdout. Stderr is captured
// for diagnostics only.
type CommandGenerator struct {
	command []string
	timeout time.Duration
}

// NewCommandGenerator creates a generator for the given argv. The timeout
// bounds each individual call.
func NewCommandGenerator(command []string, timeout time.Duration) (*CommandGenerator, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("agent command array cannot be empty")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("agent timeout must be positive, got %v", timeout)
	}
	return &CommandGenerator{
		command: append([]string{}, command...),
		timeout: timeout,
	}, nil
}

// GenerateStructured runs one agent call. The subprocess gets the request
// JSON on stdin (pipe closed after write) and its stdout is the response.
func (g *CommandGenerator) GenerateStructured(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal agent request: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var cmd *exec.Cmd
	if len(g.command) == 1 {
		cmd = exec.CommandContext(execCtx, g.command[0])
	} else {
		cmd = exec.CommandContext(execCtx, g.command[0], g.command[1:]...)
	}

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd.Stdout = &limitedWriter{w: stdoutBuf, limit: maxOutputSize}
	cmd.Stderr = &limitedWriter{w: stderrBuf, limit: maxOutputSize}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start agent command: %w", err)
	}

	go func() {
		defer stdinPipe.Close()
		if _, err := stdinPipe.Write(payload); err != nil {
			log.Printf("[Agent] Failed to write request to stdin: %v", err)
		}
	}()

	err = cmd.Wait()
	if execCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("agent call timed out after %v", g.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("agent command failed: %w (stderr: %s)", err, truncate(stderrBuf.String(), 500))
	}

	return stdoutBuf.String(), nil
}

// ScriptedGenerator replays canned responses keyed by phase and role, in
// call order per key. Safe for the engine's concurrent fan-out. Used by
// engine tests.
type ScriptedGenerator struct {
	Responses map[string][]string // "phase/role" → responses in call order
	Err       error               // returned for any key with no response left
	mu        sync.Mutex
	calls     map[string]int
	Requests  []Request // every request seen, in call order
}

// GenerateStructured returns the next scripted response for the request's
// phase/role pair.
func (g *ScriptedGenerator) GenerateStructured(ctx context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.Requests = append(g.Requests, req)

	key := req.Phase + "/" + req.Role
	responses := g.Responses[key]
	n := g.calls[key]
	g.calls[key] = n + 1

	if n >= len(responses) {
		if g.Err != nil {
			return "", g.Err
		}
		return "", fmt.Errorf("no scripted response for %s (call %d)", key, n+1)
	}
	return responses[n], nil
}

// limitedWriter wraps a writer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
