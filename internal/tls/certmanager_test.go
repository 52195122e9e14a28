package tls

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/lurewatch/lurewatch/internal/config"
)

func TestAllowCert(t *testing.T) {
	cm := NewCertManager(config.TLS{
		Domains: []string{"Check.Example.com.", "check.example.com", "", "api.example.com"},
		Email:   "ops@example.com",
	}, false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if got := cm.Domains(); len(got) != 2 || got[0] != "check.example.com" {
		t.Errorf("unexpected domains %v", got)
	}

	tests := map[string]bool{
		"check.example.com": true,
		"CHECK.EXAMPLE.COM": true,
		"api.example.com":   true,
		"evil.example.com":  false,
		"":                  false,
	}
	for name, want := range tests {
		err := cm.allowCert(context.Background(), name)
		if (err == nil) != want {
			t.Errorf("allowCert(%q) error = %v, want allowed=%v", name, err, want)
		}
	}
}
