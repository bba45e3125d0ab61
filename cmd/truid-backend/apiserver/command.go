// Package apiserver is the command that runs the public HTTP API
// server.
package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/truid-app/client-integration/internal/business"
	"github.com/truid-app/client-integration/internal/cmdutils"
)

func Cmd() *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Truid backend API server",
		"Hosts the public HTTP API serving the signup, login, and sign flows and the guarded example API.",
		business.Main,
	)
}
