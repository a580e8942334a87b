package gateway

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrTLSMaterialMissing = errors.New("azul client certificate and key are required")

// TLSMaterial points at the merchant client certificate, either as PEM files or as
// base64-encoded PEM blobs. Files win when both are set.
type TLSMaterial struct {
	CertFile string
	KeyFile  string
	CertB64  string
	KeyB64   string
	CAFile   string
}

// LoadTLSConfig builds the mutual TLS configuration used for every gateway call.
// The returned config must not be mutated after it is handed to NewClient.
func LoadTLSConfig(material TLSMaterial) (*tls.Config, error) {
	certPEM, keyPEM, err := material.pemPair()
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse azul client certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if material.CAFile != "" {
		caPEM, err := os.ReadFile(material.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read azul ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("azul ca bundle contains no certificates")
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func (m TLSMaterial) pemPair() ([]byte, []byte, error) {
	if m.CertFile != "" && m.KeyFile != "" {
		certPEM, err := os.ReadFile(m.CertFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read azul client certificate: %w", err)
		}
		keyPEM, err := os.ReadFile(m.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read azul client key: %w", err)
		}
		return certPEM, keyPEM, nil
	}

	if m.CertB64 != "" && m.KeyB64 != "" {
		certPEM, err := base64.StdEncoding.DecodeString(strings.TrimSpace(m.CertB64))
		if err != nil {
			return nil, nil, fmt.Errorf("decode azul client certificate: %w", err)
		}
		keyPEM, err := base64.StdEncoding.DecodeString(strings.TrimSpace(m.KeyB64))
		if err != nil {
			return nil, nil, fmt.Errorf("decode azul client key: %w", err)
		}
		return certPEM, keyPEM, nil
	}

	return nil, nil, ErrTLSMaterialMissing
}
