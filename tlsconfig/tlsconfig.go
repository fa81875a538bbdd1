// Package tlsconfig loads client TLS settings shared by the external MQTT
// broker connection, the Redis change cache and the OTLP exporters.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

type Config struct {
	CAFile             string `mapstructure:"ca_file"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	ServerName         string `mapstructure:"server_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

func (c Config) IsZero() bool {
	return c == Config{}
}

// Load builds the client TLS config. A zero config yields nil, which selects
// the system defaults.
func (c Config) Load() (*tls.Config, error) {
	if c.IsZero() {
		return nil, nil
	}

	out := &tls.Config{
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("tls: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls: no certificates in ca file %s", c.CAFile)
		}
		out.RootCAs = pool
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errors.New("tls: cert_file and key_file must be set together")
	}
	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: load client cert: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}

	return out, nil
}

// Merge overlays the fields set in override onto base.
func Merge(base, override Config) Config {
	out := base
	if override.CAFile != "" {
		out.CAFile = override.CAFile
	}
	if override.CertFile != "" {
		out.CertFile = override.CertFile
	}
	if override.KeyFile != "" {
		out.KeyFile = override.KeyFile
	}
	if override.ServerName != "" {
		out.ServerName = override.ServerName
	}
	if override.InsecureSkipVerify {
		out.InsecureSkipVerify = true
	}
	return out
}
