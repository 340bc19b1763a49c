// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// main.go - Entry point for the label reassigner.
//
// The tool finds every directory group that currently carries a sensitivity label and
// reassigns that label to it, replacing the group's assignedLabels collection. It is
// used to clear label conflicts after a label policy change.
//
// Commands:
// - label-reassigner --tenant-id T --label-id L --log-file F: reassign L on every group holding it
// - label-reassigner list --tenant-id T --label-id L: show the groups that would be patched
// - label-reassigner version: print the version
//
// Authentication:
// 1. --access-token (or LABEL_REASSIGNER_ACCESS_TOKEN) uses a pre-acquired bearer token
// 2. Otherwise a cached token from --token-cache is reused or refreshed
// 3. Otherwise the device code flow prints a sign-in URL and code on stderr
//
// Exit status:
// - 0 when the run completes, even if some groups failed (see the failure log)
// - 1 on configuration, sign-in or page fetch errors, or when interrupted
//
// Usage:
//   go build -o label-reassigner ./cmd/label-reassigner
//   ./label-reassigner --tenant-id contoso.onmicrosoft.com --label-id <guid> --log-file failures.log

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gebl/label-reassigner/internal/logging"
)

// Version is the current version of the label reassigner
const Version = "1.0.0"

func main() {
	logging.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		logging.MainLogger.Error("Run failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
