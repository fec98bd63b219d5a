package store

// Schema holds the DDL for the ledger tables. Applied by the server at
// startup and by integration tests against a fresh database.
//
// The partial unique index on open escrow holds is load-bearing: it is
// what guarantees at most one escrowed transaction per correlation ID
// even when two writers race on Append.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
	id             UUID PRIMARY KEY,
	payer          TEXT NOT NULL,
	payee          TEXT NOT NULL,
	gross          NUMERIC(20, 2) NOT NULL,
	fee            NUMERIC(20, 2) NOT NULL,
	commission     NUMERIC(20, 2) NOT NULL,
	net            NUMERIC(20, 2) NOT NULL,
	currency       TEXT NOT NULL,
	kind           TEXT NOT NULL,
	status         TEXT NOT NULL,
	ts             TIMESTAMPTZ NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	correlation_id TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS ledger_transactions_open_escrow
	ON ledger_transactions (correlation_id)
	WHERE status = 'escrowed';

CREATE INDEX IF NOT EXISTS ledger_transactions_payer_ts
	ON ledger_transactions (payer, ts DESC);

CREATE INDEX IF NOT EXISTS ledger_transactions_payee_ts
	ON ledger_transactions (payee, ts DESC);

CREATE TABLE IF NOT EXISTS commission_bonuses (
	recipient      TEXT NOT NULL,
	transaction_id UUID NOT NULL,
	amount         NUMERIC(20, 2) NOT NULL,
	level          INT NOT NULL,
	rate           NUMERIC(8, 4) NOT NULL,
	paid_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS commission_bonuses_recipient
	ON commission_bonuses (recipient, paid_at DESC);
`
