package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/poebridge/pkg/config"
)

// writeKeyPair writes a self-signed certificate valid for the given window.
func writeKeyPair(t *testing.T, dir, cn string, notBefore, notAfter time.Time) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func leafCN(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return leaf.Subject.CommonName
}

func TestServerConfig(t *testing.T) {
	now := time.Now()
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "poebridge", now.Add(-time.Hour), now.Add(90*24*time.Hour))

	expiredDir := t.TempDir()
	expiredCert, expiredKey := writeKeyPair(t, expiredDir, "old", now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	tests := []struct {
		name        string
		cfg         config.TLSConfig
		wantNil     bool
		wantErr     bool
		wantVersion uint16
	}{
		{name: "disabled", cfg: config.TLSConfig{Enabled: false}, wantNil: true},
		{
			name:        "tls 1.3",
			cfg:         config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"},
			wantVersion: tls.VersionTLS13,
		},
		{
			name:        "default version",
			cfg:         config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
			wantVersion: tls.VersionTLS12,
		},
		{name: "missing key", cfg: config.TLSConfig{Enabled: true, CertFile: certFile}, wantErr: true},
		{name: "expired", cfg: config.TLSConfig{Enabled: true, CertFile: expiredCert, KeyFile: expiredKey}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			got, err := ServerConfig(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ServerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("ServerConfig() = %v, wantNil %v", got, tt.wantNil)
			}
			if got == nil {
				return
			}
			if got.MinVersion != tt.wantVersion {
				t.Errorf("MinVersion = %x, want %x", got.MinVersion, tt.wantVersion)
			}
			cert, err := got.GetCertificate(&tls.ClientHelloInfo{})
			if err != nil || cert == nil {
				t.Fatalf("GetCertificate() = %v, %v", cert, err)
			}
		})
	}
}

func TestCertificateReloader_Reload(t *testing.T) {
	now := time.Now()
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "first", now.Add(-time.Hour), now.Add(90*24*time.Hour))

	r := NewCertificateReloader(certFile, keyFile, time.Hour)
	if err := r.reload(); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if got := leafCN(t, r.GetCertificate()); got != "first" {
		t.Fatalf("CN = %q, want first", got)
	}
	if r.changed() {
		t.Error("changed() = true right after load")
	}

	writeKeyPair(t, dir, "second", now.Add(-time.Hour), now.Add(90*24*time.Hour))
	future := now.Add(time.Minute)
	for _, f := range []string{certFile, keyFile} {
		if err := os.Chtimes(f, future, future); err != nil {
			t.Fatal(err)
		}
	}

	if !r.changed() {
		t.Fatal("changed() = false after files were replaced")
	}
	if err := r.reload(); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if got := leafCN(t, r.GetCertificate()); got != "second" {
		t.Errorf("CN = %q, want second", got)
	}
}

func TestCheckCertificateExpiration(t *testing.T) {
	tests := []struct {
		name        string
		notAfter    time.Duration
		wantWarning bool
	}{
		{name: "plenty of time", notAfter: 90 * 24 * time.Hour},
		{name: "expiring soon", notAfter: 10 * 24 * time.Hour, wantWarning: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: time.Now().Add(tt.notAfter)}
			_, warning := CheckCertificateExpiration(cert)
			if (warning != "") != tt.wantWarning {
				t.Errorf("warning = %q, wantWarning %v", warning, tt.wantWarning)
			}
		})
	}
}

func TestGetCertificateFunc_Empty(t *testing.T) {
	r := NewCertificateReloader("a", "b", 0)
	if _, err := r.GetCertificateFunc()(&tls.ClientHelloInfo{}); err == nil {
		t.Error("GetCertificateFunc() error = nil before any load")
	}
}
