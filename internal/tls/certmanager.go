package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/caddyserver/certmagic"

	"github.com/lurewatch/lurewatch/internal/config"
)

// CertManager manages automatic TLS certificates via certmagic for the
// service's own configured host names.
type CertManager struct {
	domains map[string]struct{}
	names   []string
	logger  *slog.Logger
	cfg     *certmagic.Config
}

// NewCertManager creates a CertManager for cfg.Domains. Outside production
// certificates come from the staging CA.
func NewCertManager(cfg config.TLS, production bool, logger *slog.Logger) *CertManager {
	certmagic.DefaultACME.Email = cfg.Email
	certmagic.DefaultACME.Agreed = true

	if !production {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	cm := &CertManager{
		domains: make(map[string]struct{}, len(cfg.Domains)),
		logger:  logger,
		cfg:     certmagic.NewDefault(),
	}
	for _, d := range cfg.Domains {
		d = strings.ToLower(strings.TrimSuffix(d, "."))
		if _, dup := cm.domains[d]; dup || d == "" {
			continue
		}
		cm.domains[d] = struct{}{}
		cm.names = append(cm.names, d)
	}

	cm.cfg.OnDemand = &certmagic.OnDemandConfig{
		DecisionFunc: cm.allowCert,
	}
	return cm
}

// allowCert is the on-demand decision function. Only configured names get
// certificates.
func (cm *CertManager) allowCert(_ context.Context, name string) error {
	if _, ok := cm.domains[strings.ToLower(name)]; !ok {
		return fmt.Errorf("unknown domain: %s", name)
	}
	return nil
}

// Domains returns the managed host names in configuration order.
func (cm *CertManager) Domains() []string {
	return cm.names
}

// Serve obtains certificates for the configured domains and then serves srv
// over TLS on the HTTPS port until srv is shut down.
func (cm *CertManager) Serve(ctx context.Context, srv *http.Server) error {
	cm.logger.Info("starting TLS server", "domains", cm.names)

	// Pre-manage known domains so their certs are ready immediately
	if err := cm.cfg.ManageSync(ctx, cm.names); err != nil {
		return fmt.Errorf("manage domains: %w", err)
	}

	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", certmagic.HTTPSPort), cm.cfg.TLSConfig())
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}

	cm.logger.Info("serving HTTPS", "port", certmagic.HTTPSPort)
	return srv.Serve(ln)
}
