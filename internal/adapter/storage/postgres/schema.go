package postgres

import (
	"context"
	"fmt"
)

// Schema is the wallet document table. Histories and the card live in
// JSONB; the columns the store filters or updates atomically are
// first-class.
const Schema = `
CREATE TABLE IF NOT EXISTS wallets (
    wid               TEXT PRIMARY KEY,
    apikey            TEXT NOT NULL,
    owner_id          BIGINT,
    email             TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    balance           BIGINT,
    amount_negative   BIGINT NOT NULL DEFAULT 0,
    card              JSONB NOT NULL DEFAULT '{}',
    external_account  JSONB,
    transfers_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    available         BOOLEAN NOT NULL DEFAULT TRUE,
    giftcode          BOOLEAN NOT NULL DEFAULT FALSE,
    is_locked         BIGINT NOT NULL DEFAULT 0,
    signature         TEXT NOT NULL DEFAULT '',
    transactions      JSONB NOT NULL DEFAULT '[]',
    transfers         JSONB NOT NULL DEFAULT '[]',
    created           TIMESTAMPTZ NOT NULL,
    updated           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wallets_apikey ON wallets (apikey);
CREATE INDEX IF NOT EXISTS idx_wallets_owner ON wallets (owner_id) WHERE owner_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_wallets_card_number ON wallets ((card->>'number'));
`

// EnsureSchema creates the wallets table and its indexes if absent.
func EnsureSchema(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
