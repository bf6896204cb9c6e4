package postgres

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-ledger/config"
)

func TestNewPool_BadConfig(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "ledger",
		DBName:  "wallet_ledger",
		SSLMode: "bogus",
	}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing database config")
}
