// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Secret-store command-line tools.
const (
	toolSecurity   = "security"    // macOS
	toolSecretTool = "secret-tool" // Linux (libsecret)
)

// Runner executes name with args, feeding stdin, and returns trimmed stdout.
type Runner func(ctx context.Context, stdin, name string, args ...string) (string, error)

// execRunner runs a real subprocess bound to ctx.
func execRunner(ctx context.Context, stdin, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		return "", fmt.Errorf("%s: %s: %w", name, strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// cliBackend shells out to the platform's native secret-store tool.
type cliBackend struct {
	tool string
	run  Runner
}

func (c *cliBackend) Get(ctx context.Context, service, account string) (string, error) {
	var args []string
	switch c.tool {
	case toolSecurity:
		args = []string{"find-generic-password", "-s", service, "-a", account, "-w"}
	case toolSecretTool:
		args = []string{"lookup", "service", service, "account", account}
	default:
		return "", ErrUnsupported
	}
	out, err := c.run(ctx, "", c.tool, args...)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", ErrNotFound
	}
	return out, nil
}

func (c *cliBackend) Set(ctx context.Context, service, account, label, value string) error {
	switch c.tool {
	case toolSecurity:
		// -U updates the item in place when it already exists
		_, err := c.run(ctx, "", c.tool,
			"add-generic-password", "-s", service, "-a", account, "-w", value, "-U")
		return err
	case toolSecretTool:
		// secret-tool reads the secret from stdin
		_, err := c.run(ctx, value, c.tool,
			"store", "--label="+label, "service", service, "account", account)
		return err
	default:
		return ErrUnsupported
	}
}

func (c *cliBackend) Delete(ctx context.Context, service, account string) error {
	var args []string
	switch c.tool {
	case toolSecurity:
		args = []string{"delete-generic-password", "-s", service, "-a", account}
	case toolSecretTool:
		args = []string{"clear", "service", service, "account", account}
	default:
		return ErrUnsupported
	}
	_, err := c.run(ctx, "", c.tool, args...)
	return err
}

// lookPathBackend returns a cliBackend for tool if it is on PATH.
func lookPathBackend(tool string) (backend, error) {
	if tool == "" {
		return nil, ErrUnsupported
	}
	if _, err := exec.LookPath(tool); err != nil {
		return nil, fmt.Errorf("%s command not found: %w", tool, err)
	}
	return &cliBackend{tool: tool, run: execRunner}, nil
}
