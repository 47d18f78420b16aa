// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		Long:  "Check the running gateway's health endpoint and display which planner provider is active.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:18650", "gateway address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var body struct {
		Status         string `json:"status"`
		ActiveProvider string `json:"active_provider"`
		Reachable      bool   `json:"reachable"`
	}
	if err := gw.getJSON("/health", &body); err != nil {
		if parleyerr.HasCode(err, parleyerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	if !body.Reachable {
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s (no planner provider reachable)\n", addr, body.Status)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Gateway at %s: %s (provider: %s)\n", addr, body.Status, body.ActiveProvider)
	return nil
}
