package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const CAFile = "ca.pem"

// LoadError reports a certificate artifact that could not be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load certificate %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Bundle is the CA pool plus this service's key pair. It is loaded once at
// startup and only read afterwards.
type Bundle struct {
	Name string
	CA   *x509.CertPool
	Cert tls.Certificate
}

// CertPath and KeyPath follow the <name>.pem / <name>-key.pem layout.
func CertPath(dir, name string) string { return filepath.Join(dir, name+".pem") }
func KeyPath(dir, name string) string  { return filepath.Join(dir, name+"-key.pem") }

// Load reads dir/ca.pem, dir/<name>.pem and dir/<name>-key.pem.
func Load(dir, name string) (*Bundle, error) {
	caPath := filepath.Join(dir, CAFile)
	caPEM, err := readPEM(caPath, "CERTIFICATE")
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, &LoadError{Path: caPath, Err: fmt.Errorf("no usable CA certificate")}
	}

	certPath := CertPath(dir, name)
	certPEM, err := readPEM(certPath, "CERTIFICATE")
	if err != nil {
		return nil, err
	}
	keyPath := KeyPath(dir, name)
	keyPEM, err := readPEM(keyPath, "")
	if err != nil {
		return nil, err
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &LoadError{Path: keyPath, Err: err}
	}

	return &Bundle{Name: name, CA: pool, Cert: pair}, nil
}

// readPEM reads path and checks it holds at least one PEM block of the given
// type. An empty wantType accepts any block (private keys come in several).
func readPEM(path, wantType string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("not PEM encoded")}
	}
	if wantType != "" && block.Type != wantType {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unexpected PEM block %q", block.Type)}
	}
	return data, nil
}

// ClientConfig verifies the remote server against the CA and presents the
// local certificate when the server asks for one.
func (b *Bundle) ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:   serverName,
		RootCAs:      b.CA,
		Certificates: []tls.Certificate{b.Cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// ServerConfig requires and verifies a CA-signed client certificate on every
// connection.
func (b *Bundle) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{b.Cert},
		ClientCAs:    b.CA,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
}
