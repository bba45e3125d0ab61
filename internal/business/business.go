// Package business wires the application together: the session store,
// the provider client, the signature verifier, the flow manager, and
// the HTTP server.
package business

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/truid-app/client-integration/internal/business/server"
	"github.com/truid-app/client-integration/internal/config"
	"github.com/truid-app/client-integration/internal/flow"
	"github.com/truid-app/client-integration/internal/session"
	sessionmemory "github.com/truid-app/client-integration/internal/session/memory"
	sessionvalkey "github.com/truid-app/client-integration/internal/session/valkey"
	"github.com/truid-app/client-integration/internal/signature"
	"github.com/truid-app/client-integration/internal/trust"
	"github.com/truid-app/client-integration/internal/truid"
)

// defaultDocument stands in when no document path is configured. It is
// a minimal single-page PDF so the sign flow works out of the box.
const defaultDocument = `%PDF-1.4
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj
3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >> endobj
4 0 obj << /Length 44 >> stream
BT /F1 24 Tf 72 720 Td (Agreement) Tj ET
endstream endobj
trailer << /Root 1 0 R >>
%%EOF
`

// Main runs the backend until the context is cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	repo, closeFn, err := initRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the session repository: %w", err)
	}
	defer closeFn()

	flows, err := initFlowManager(cfg, repo)
	if err != nil {
		return err
	}

	sessions := session.NewManager(&cfg.Session, repo)

	return server.StartHTTPServer(ctx, cfg, sessions, flows)
}

// initRepository selects the session store: valkey when a host is
// configured, the in-process store otherwise.
func initRepository(ctx context.Context, cfg *config.Config) (session.Repository, func(), error) {
	if cfg.ValKey.Host == "" {
		slogctx.Info(ctx, "Using the in-process session store; sessions will not survive a restart")

		return sessionmemory.NewRepository(cfg.Session.Duration), func() {}, nil
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.ValKey.Host},
		Username:    cfg.ValKey.User,
		Password:    cfg.ValKey.Password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return sessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix), valkeyClient.Close, nil
}

func initFlowManager(cfg *config.Config, repo session.Repository) (*flow.Manager, error) {
	document, err := loadDocument(&cfg.Document)
	if err != nil {
		return nil, fmt.Errorf("loading the signable document: %w", err)
	}

	var verifier *signature.Verifier
	if cfg.Truid.SignEndpoint != "" {
		anchors, err := trust.NewAnchorSet(cfg.Truid.TrustAnchors)
		if err != nil {
			return nil, fmt.Errorf("loading trust anchors: %w", err)
		}

		documentURI := cfg.Web.PublicBaseURL + flow.DocumentPath
		verifier = signature.NewVerifier(anchors, documentURI, cfg.Document.UserMessage)
	}

	client := truid.NewClient(&cfg.Truid, http.DefaultClient)

	return flow.NewManager(cfg, repo, client, verifier, document), nil
}

func loadDocument(cfg *config.Document) ([]byte, error) {
	if cfg.Path == "" {
		return []byte(defaultDocument), nil
	}

	document, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.Path, err)
	}

	return document, nil
}
