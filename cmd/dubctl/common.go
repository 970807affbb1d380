package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kovacsmedia/dubctl/internal/auth"
	"github.com/kovacsmedia/dubctl/internal/logger"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	promptForKey = auth.PromptForAPIKey
)

// resolveAPIKey finds the API key for service, trying the OS keychain first,
// then (if allowed) the environment, then an interactive terminal prompt —
// the same precedence internal/auth.GetKey documents.
func resolveAPIKey(service string, allowEnv, envOnly bool) (string, string, error) {
	if envOnly {
		allowEnv = true
	}
	if envOnly {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable", nil
		}
		return "", "", fmt.Errorf("env-only set but %s_API_KEY is not set", strings.ToUpper(service))
	}

	if key, source := getKey(service, false); key != "" {
		return key, source, nil
	}

	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable", nil
		}
	}

	if isTerminal(int(os.Stdin.Fd())) {
		key, err := promptForKey(fmt.Sprintf("%s API Key (press Enter to skip): ", auth.ServiceLabel(service)))
		if err != nil {
			return "", "", fmt.Errorf("error reading API key: %w", err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), "Terminal Prompt", nil
		}
	}

	if !isTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("no %s API key available (non-interactive shell); set keychain or use --allow-env", service)
	}
	if allowEnv {
		return "", "", fmt.Errorf("%s API key is required; not found in keychain or environment", service)
	}
	return "", "", fmt.Errorf("%s API key is required; not found in keychain (environment disabled by default; use --allow-env)", service)
}

// signalContext returns a context canceled on SIGINT/SIGTERM, so a submit in
// flight gets one cooperative cancellation checkpoint rather than being
// killed mid-write.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Cancellation requested")
		cancel()
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
