package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateWithWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Chain.RPCURL = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "chain: rpc_url")
	require.Contains(t, err.Error(), "redis: addr")
	require.Contains(t, err.Error(), "wallet:")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COREYIELD_WALLET_PRIVATE_KEY", "0xabc")
	t.Setenv("COREYIELD_CHAIN_ID", "31337")
	t.Setenv("COREYIELD_ORCHESTRATOR_COMPLETE_COOLDOWN", "5s")
	t.Setenv("COREYIELD_SERVER_CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("COREYIELD_POSTGRES_RUN_MIGRATIONS", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	require.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	require.Equal(t, int64(31337), cfg.Chain.ChainID)
	require.Equal(t, 5*time.Second, cfg.Orchestrator.CompleteCooldown.Duration)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	require.False(t, cfg.Postgres.RunMigrations)
}
