package setup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/balancewatch/config"
	"github.com/vadiminshakov/balancewatch/internal/domain"
)

func TestParseWallet(t *testing.T) {
	wallet, err := parseWallet(" usdt = 1000, BTC=0.1,, ")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"USDT": "1000", "BTC": "0.1"}, wallet)

	for _, bad := range []string{"", "USDT", "=5", "USDT=abc", "USDT=-1"} {
		_, err := parseWallet(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, validateDuration("5s"))
	assert.Error(t, validateDuration("0s"))
	assert.Error(t, validateDuration("soon"))
}

func TestBuildConfig(t *testing.T) {
	a := defaultAnswers()
	a.platform = config.PlatformBybit
	a.pollIntervalStr = "30s"
	a.testnet = true

	tmp, err := buildConfig(a)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, tmp.PollInterval)
	assert.True(t, tmp.Testnet)
	assert.Empty(t, tmp.MarketTypeStr)

	a = defaultAnswers()
	a.platform = config.PlatformSimulate
	a.testnet = true
	tmp, err = buildConfig(a)
	require.NoError(t, err)
	assert.False(t, tmp.Testnet)
	assert.Equal(t, map[string]string{"USDT": "1000"}, tmp.SimulateWallet)

	_, err = buildConfig(answers{platform: "kraken"})
	assert.Error(t, err)
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	a := defaultAnswers()
	a.platform = config.PlatformBinance
	a.marketType = "margin"
	tmp, err := buildConfig(a)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), GeneratedConfigPath)
	require.NoError(t, writeConfig(path, tmp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	conf, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, config.PlatformBinance, conf.Platform)
	assert.Equal(t, domain.MarketTypeMargin, conf.MarketType)
	assert.Equal(t, ":8080", conf.WebAddr)
	assert.Equal(t, "./wal/balance", conf.JournalDir)
}

func TestWriteConfig_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), GeneratedConfigPath)
	err := writeConfig(path, config.ConfigTmp{Platform: config.PlatformBybit, MarketTypeStr: "margin"})
	assert.ErrorContains(t, err, "generated config is invalid")
	assert.NoFileExists(t, path)
}
