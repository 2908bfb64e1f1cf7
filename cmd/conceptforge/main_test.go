package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conceptforge/conceptforge/internal/app"
	"github.com/conceptforge/conceptforge/internal/metaproject"
)

func TestAdminAddress(t *testing.T) {
	cfg := &app.Config{AdminAddr: ":9091"}

	assert.Equal(t, ":8081", adminAddress(cfg, metaproject.Host{SecondaryPort: 8081}))
	assert.Equal(t, ":9091", adminAddress(cfg, metaproject.Host{}))
}
