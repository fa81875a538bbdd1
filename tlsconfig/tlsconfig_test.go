package tlsconfig_test

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex-wang/AUIKit/tlsconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroConfigLoadsNil(t *testing.T) {
	cfg, err := tlsconfig.Config{}.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadServerName(t *testing.T) {
	cfg, err := tlsconfig.Config{ServerName: "broker.local", InsecureSkipVerify: true}.Load()
	require.NoError(t, err)
	assert.Equal(t, "broker.local", cfg.ServerName)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))

	tests := []tlsconfig.Config{
		{CAFile: filepath.Join(dir, "missing.pem")},
		{CAFile: bad},
		{CertFile: "client.pem"},
		{KeyFile: "client.key"},
	}
	for _, tc := range tests {
		_, err := tc.Load()
		assert.Error(t, err, "%+v", tc)
	}
}

func TestMerge(t *testing.T) {
	base := tlsconfig.Config{CAFile: "base.pem", ServerName: "base"}
	got := tlsconfig.Merge(base, tlsconfig.Config{ServerName: "override", InsecureSkipVerify: true})
	assert.Equal(t, tlsconfig.Config{CAFile: "base.pem", ServerName: "override", InsecureSkipVerify: true}, got)
}
