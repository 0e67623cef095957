package transport

import (
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
)

// writeTestCertificate creates a self-signed certificate and key in dir
// and returns their paths.
func writeTestCertificate(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate private key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "broker.local",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestNewClientTLSConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCertificate(t, dir)

	tlsConfig, err := NewClientTLSConfig(&TLSConfig{
		CAFile:     certFile,
		CertFile:   certFile,
		KeyFile:    keyFile,
		ServerName: "broker.local",
	})
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}

	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want TLS 1.2 (%d)", tlsConfig.MinVersion, tls.VersionTLS12)
	}
	if tlsConfig.RootCAs == nil {
		t.Error("RootCAs should be set")
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("len(Certificates) = %d, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.ServerName != "broker.local" {
		t.Errorf("ServerName = %q, want broker.local", tlsConfig.ServerName)
	}
	if tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should be false")
	}
}

func TestNewClientTLSConfigSystemRoots(t *testing.T) {
	tlsConfig, err := NewClientTLSConfig(&TLSConfig{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}
	if tlsConfig.RootCAs != nil {
		t.Error("RootCAs should be nil to use system roots")
	}
	if !tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should be true")
	}
}

func TestNewClientTLSConfigErrors(t *testing.T) {
	dir := t.TempDir()
	certFile, _ := writeTestCertificate(t, dir)
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  *TLSConfig
	}{
		{"nil config", nil},
		{"cert without key", &TLSConfig{CertFile: certFile}},
		{"missing CA file", &TLSConfig{CAFile: filepath.Join(dir, "nope.pem")}},
		{"CA without certificates", &TLSConfig{CAFile: garbage}},
		{"bad key pair", &TLSConfig{CertFile: certFile, KeyFile: garbage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClientTLSConfig(tt.cfg); err == nil {
				t.Error("NewClientTLSConfig should fail")
			}
		})
	}
}

func TestTLSConfigEnabled(t *testing.T) {
	var nilCfg *TLSConfig
	if nilCfg.Enabled() {
		t.Error("nil config should not be enabled")
	}
	if (&TLSConfig{}).Enabled() {
		t.Error("empty config should not be enabled")
	}
	if !(&TLSConfig{CAFile: "ca.pem"}).Enabled() {
		t.Error("config with CA file should be enabled")
	}
}
