package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	c := Init()

	assert.Equal(t, "server", c.Mode)
	assert.Equal(t, ":8080", c.ServerAddr)
	assert.Equal(t, 24*time.Hour, c.JWTAccessTTL)
	assert.Equal(t, "blog-events", c.KafkaTopic)
	assert.Same(t, c, Get())
}

func TestInit_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("KAFKA_READ_TIMEOUT", "not-a-duration")

	c := Init()

	assert.Equal(t, "sqlite", c.StoreDriver)
	assert.Equal(t, 15*time.Minute, c.JWTAccessTTL)
	assert.Equal(t, 10*time.Second, c.KafkaReadTO)
}

func TestFromViper_GroupSeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
groups:
  - title: Cats
    slug: cats
    description: all about cats
  - title: Go Programming
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c := fromViper(v)
	require.Len(t, c.Groups, 2)
	assert.Equal(t, GroupSeed{Title: "Cats", Slug: "cats", Description: "all about cats"}, c.Groups[0])
	assert.Equal(t, "Go Programming", c.Groups[1].Title)
	assert.Empty(t, c.Groups[1].Slug)
}
