package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/cam3ron2/classroom-stats/internal/config"
)

func TestLogLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  zapcore.Level
	}{
		{name: "debug", input: "debug", want: zapcore.DebugLevel},
		{name: "warn", input: "WARN", want: zapcore.WarnLevel},
		{name: "error", input: "error", want: zapcore.ErrorLevel},
		{name: "default_info", input: "other", want: zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := logLevel(tc.input)
			if got != tc.want {
				t.Fatalf("logLevel(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestShouldIgnoreLoggerSyncError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil_error", err: nil, want: false},
		{name: "einval_direct", err: syscall.EINVAL, want: true},
		{name: "enotty_direct", err: syscall.ENOTTY, want: true},
		{name: "wrapped_einval", err: fmt.Errorf("wrapped: %w", syscall.EINVAL), want: true},
		{name: "other_error", err: errors.New("boom"), want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := shouldIgnoreLoggerSyncError(tc.err)
			if got != tc.want {
				t.Fatalf("shouldIgnoreLoggerSyncError(%v) = %t, want %t", tc.err, got, tc.want)
			}
		})
	}
}

func TestRootCommandLayout(t *testing.T) {
	t.Parallel()

	root := newRootCommand(newCLI(&bytes.Buffer{}))
	for _, name := range []string{"scrape", "clone", "serve", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("Find(%q) = %v, %v", name, cmd, err)
		}
	}

	scrapeCmd, _, _ := root.Find([]string{"scrape"})
	if got := scrapeCmd.Flags().Lookup("hub-repo-id").DefValue; got != "your-username/repo-stats" {
		t.Fatalf("--hub-repo-id default = %q", got)
	}
	if got := scrapeCmd.Flags().Lookup("push-to-hub").DefValue; got != "false" {
		t.Fatalf("--push-to-hub default = %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	root := newRootCommand(newCLI(&stdout))
	root.SetArgs([]string{"version"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version unexpected error: %v", err)
	}
	if stdout.String() != "classroom-stats dev\n" {
		t.Fatalf("version output = %q", stdout.String())
	}
}

// The commands below install the global tracer provider, so they do not run in parallel.

func TestScrapeRequiresCredential(t *testing.T) {
	c := newCLI(&bytes.Buffer{})
	c.lookupEnv = func(string) (string, bool) { return "", false }
	root := newRootCommand(c)
	root.SetArgs([]string{"scrape"})

	err := root.ExecuteContext(context.Background())
	var missing *config.MissingCredentialError
	if !errors.As(err, &missing) {
		t.Fatalf("scrape error = %v, want *config.MissingCredentialError", err)
	}
}

func TestHubFlagsRequireHubConfig(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "scrape_push", args: []string{"scrape", "--push-to-hub"}, want: "--push-to-hub requires hub.redis_addr"},
		{name: "serve_from_hub", args: []string{"serve", "--from-hub", "--addr", "127.0.0.1:0"}, want: "--from-hub requires hub.redis_addr"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newCLI(&bytes.Buffer{})
			c.lookupEnv = func(string) (string, bool) { return "token", true }
			root := newRootCommand(c)
			root.SetArgs(tc.args)

			err := root.ExecuteContext(context.Background())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("%v error = %v, want %q", tc.args, err, tc.want)
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	root := newRootCommand(newCLI(&bytes.Buffer{}))
	root.SetArgs([]string{"clone", "--config", t.TempDir() + "/absent.yaml"})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("clone error = %v, want load config error", err)
	}
}
