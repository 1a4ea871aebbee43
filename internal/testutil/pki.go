// Package testutil holds fixtures shared by package tests: a throwaway
// certificate authority and a logger that writes through testing.T.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aanthord/mtls-relay/internal/certs"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// PKI is an ECDSA P-256 certificate authority rooted in a temp directory,
// laid out the way certs.Load expects.
type PKI struct {
	Dir    string
	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey
	serial int64
}

func NewPKI(t testing.TB) *PKI {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "relay test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA certificate: %v", err)
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA certificate: %v", err)
	}

	p := &PKI{Dir: t.TempDir(), caCert: caCert, caKey: key, serial: 1}
	writePEM(t, filepath.Join(p.Dir, certs.CAFile), "CERTIFICATE", der)
	return p
}

// Issue writes <name>.pem and <name>-key.pem, valid for localhost and
// 127.0.0.1 in both client and server roles.
func (p *PKI) Issue(t testing.TB, name string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	p.serial++
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(p.serial),
		Subject:      pkix.Name{CommonName: name},
		DNSNames:     []string{"localhost", name},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, p.caCert, &key.PublicKey, p.caKey)
	if err != nil {
		t.Fatalf("create certificate %s: %v", name, err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key %s: %v", name, err)
	}
	writePEM(t, certs.CertPath(p.Dir, name), "CERTIFICATE", der)
	writePEM(t, certs.KeyPath(p.Dir, name), "EC PRIVATE KEY", keyDER)
}

// Bundle issues name if needed and loads it.
func (p *PKI) Bundle(t testing.TB, name string) *certs.Bundle {
	t.Helper()
	if _, err := os.Stat(certs.CertPath(p.Dir, name)); os.IsNotExist(err) {
		p.Issue(t, name)
	}
	b, err := certs.Load(p.Dir, name)
	if err != nil {
		t.Fatalf("load bundle %s: %v", name, err)
	}
	return b
}

func writePEM(t testing.TB, path, blockType string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// NewTestLogger routes log output through t.Log so it only shows for
// failing tests.
func NewTestLogger(t testing.TB) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}
