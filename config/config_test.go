package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apex-wang/AUIKit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokerConfig struct {
	Mode     string        `mapstructure:"mode" default:"embedded" validate:"oneof=embedded external"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" default:"10s"`
}

type sectionConfig struct {
	Prefix  string       `mapstructure:"prefix" default:"auikit/rtm"`
	Retain  bool         `mapstructure:"retain"`
	Brokers []string     `mapstructure:"brokers"`
	Broker  brokerConfig `mapstructure:"broker"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecodeAppliesDefaults(t *testing.T) {
	v, err := config.New(config.WithFile(filepath.Join(t.TempDir(), "missing.toml")))
	require.NoError(t, err)

	out, err := config.Decode[sectionConfig](v, "realtime")
	require.NoError(t, err)
	assert.Equal(t, "auikit/rtm", out.Prefix)
	assert.Equal(t, "embedded", out.Broker.Mode)
	assert.Equal(t, 10*time.Second, out.Broker.Timeout)
}

func TestDecodeReadsFileAndEnv(t *testing.T) {
	path := writeConfig(t, "[realtime]\nprefix = \"custom\"\nretain = true\n[realtime.broker]\nmode = \"external\"\ntimeout = \"3s\"\n")
	t.Setenv("AUIKIT_REALTIME_BROKER_ENDPOINT", "tcp://broker:1883")
	t.Setenv("AUIKIT_REALTIME_BROKERS", "a,b")

	v, err := config.New(config.WithFile(path))
	require.NoError(t, err)

	out, err := config.Decode[sectionConfig](v, "realtime")
	require.NoError(t, err)
	assert.Equal(t, "custom", out.Prefix)
	assert.True(t, out.Retain)
	assert.Equal(t, []string{"a", "b"}, out.Brokers)
	assert.Equal(t, "external", out.Broker.Mode)
	assert.Equal(t, "tcp://broker:1883", out.Broker.Endpoint)
	assert.Equal(t, 3*time.Second, out.Broker.Timeout)
}

func TestDecodeValidates(t *testing.T) {
	path := writeConfig(t, "[realtime.broker]\nmode = \"carrier-pigeon\"\n")
	v, err := config.New(config.WithFile(path))
	require.NoError(t, err)

	_, err = config.Decode[sectionConfig](v, "realtime")
	assert.ErrorContains(t, err, "validate realtime")
}

func TestNewRequiredFile(t *testing.T) {
	_, err := config.New(config.WithFile(filepath.Join(t.TempDir(), "missing.toml")), config.WithRequired())
	assert.Error(t, err)
}

func TestWithOverride(t *testing.T) {
	v, err := config.New(config.WithFile(""), config.WithOverride("realtime.prefix", "forced"))
	require.NoError(t, err)

	out, err := config.Decode[sectionConfig](v, "realtime")
	require.NoError(t, err)
	assert.Equal(t, "forced", out.Prefix)
}
