package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 8181
database:
  driver: sqlite3
  url: test.db
llm:
  provider: OpenAI
  model: gpt-4o-mini
extraction:
  timeout: 5s
upsell:
  cooldown_orders: 3
  sample_size: 200
  min_co_occurrence: 3
geo:
  stores:
    - tenant_id: doner-house
      id: kadikoy
      name: Kadikoy
      lat: 40.99
      lng: 29.02
      radius_km: 4
      delivery_fee: "12.50"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	require.Len(t, cfg.Geo.Stores, 1)
	assert.Equal(t, "12.5", cfg.Geo.Stores[0].DeliveryFee.String())
	// untouched sections keep defaults
	assert.Equal(t, 10, cfg.Sessions.HistorySize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAITRED_SERVER_PORT", "9999")
	t.Setenv("MAITRED_LLM_API_KEY", "sk-test")
	t.Setenv("MAITRED_UPSELL_ENABLED", "false")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.False(t, cfg.Upsell.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Geo.Stores = []StoreConfig{{TenantID: "t", ID: "s"}}
	assert.Error(t, cfg.Validate())
}
