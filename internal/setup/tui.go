package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/balancewatch/config"
)

// GeneratedConfigPath file written by the wizard.
const GeneratedConfigPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collected by the wizard.
type answers struct {
	platform        string
	marketType      string
	testnet         bool
	pollIntervalStr string
	walletStr       string
	webAddr         string
	journalDir      string
}

func defaultAnswers() answers {
	return answers{
		marketType:      "spot",
		pollIntervalStr: "10s",
		walletStr:       "USDT=1000",
		webAddr:         ":8080",
		journalDir:      "./wal/balance",
	}
}

func header(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("BALANCEWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and returns the path of the written config.
func RunTUI() (string, error) {
	a := defaultAnswers()

	// step 1: platform
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("BALANCEWATCH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Keep a live copy of your exchange balances.\n"))
	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance (push stream)", config.PlatformBinance),
					huh.NewOption("Bybit (polling)", config.PlatformBybit),
					huh.NewOption("Hyperliquid (polling)", config.PlatformHyperliquid),
					huh.NewOption("Simulation", config.PlatformSimulate),
				).
				Value(&a.platform),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// step 2: account
	header("STEP 2: ACCOUNT")
	var accountFields []huh.Field
	switch a.platform {
	case config.PlatformBinance:
		accountFields = append(accountFields,
			huh.NewSelect[string]().
				Title("Spot or Margin?").
				Options(
					huh.NewOption("Spot", "spot"),
					huh.NewOption("Cross margin", "margin"),
				).
				Value(&a.marketType),
		)
	case config.PlatformBybit, config.PlatformHyperliquid:
		accountFields = append(accountFields,
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 5s, 30s, 1m)").
				Value(&a.pollIntervalStr).
				Validate(validateDuration),
		)
	case config.PlatformSimulate:
		accountFields = append(accountFields,
			huh.NewInput().
				Title("Wallet").
				Description("Comma separated ASSET=AMOUNT (e.g. USDT=1000,BTC=0.1)").
				Value(&a.walletStr).
				Validate(validateWallet),
		)
	}
	if a.platform != config.PlatformSimulate {
		accountFields = append(accountFields,
			huh.NewConfirm().
				Title("Use testnet?").
				Value(&a.testnet),
		)
	}
	if err := huh.NewForm(huh.NewGroup(accountFields...)).Run(); err != nil {
		return "", err
	}

	// step 3: outputs
	header("STEP 3: OUTPUTS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Web Address").
				Description("Listen address for the HTTP API, empty disables it").
				Value(&a.webAddr),
			huh.NewInput().
				Title("Journal Directory").
				Description("WAL directory for applied batches, empty disables it").
				Value(&a.journalDir),
		),
	).Run()
	if err != nil {
		return "", err
	}

	cfgTmp, err := buildConfig(a)
	if err != nil {
		return "", err
	}

	// confirmation
	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nMarket: %s\nTestnet: %t\nWeb: %s\nJournal: %s\n",
		cfgTmp.Platform, cfgTmp.MarketTypeStr, cfgTmp.Testnet, orDisabled(cfgTmp.WebAddr), orDisabled(cfgTmp.JournalDir),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := writeConfig(GeneratedConfigPath, cfgTmp); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting...", GeneratedConfigPath)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return GeneratedConfigPath, nil
}

func buildConfig(a answers) (config.ConfigTmp, error) {
	cfgTmp := config.ConfigTmp{
		Platform:   a.platform,
		Testnet:    a.testnet,
		WebAddr:    strings.TrimSpace(a.webAddr),
		JournalDir: strings.TrimSpace(a.journalDir),
	}

	switch a.platform {
	case config.PlatformBinance:
		cfgTmp.MarketTypeStr = a.marketType
	case config.PlatformBybit, config.PlatformHyperliquid:
		d, err := time.ParseDuration(a.pollIntervalStr)
		if err != nil {
			return config.ConfigTmp{}, fmt.Errorf("invalid poll interval: %w", err)
		}
		cfgTmp.PollInterval = d
	case config.PlatformSimulate:
		wallet, err := parseWallet(a.walletStr)
		if err != nil {
			return config.ConfigTmp{}, err
		}
		cfgTmp.SimulateWallet = wallet
		cfgTmp.Testnet = false
	default:
		return config.ConfigTmp{}, fmt.Errorf("unsupported platform: %s", a.platform)
	}

	return cfgTmp, nil
}

// writeConfig validates the generated config by parsing it back before saving.
func writeConfig(path string, cfgTmp config.ConfigTmp) error {
	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if _, err := config.Parse(data); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateWallet(s string) error {
	_, err := parseWallet(s)
	return err
}

func parseWallet(s string) (map[string]string, error) {
	wallet := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		asset, amount, ok := strings.Cut(part, "=")
		asset = strings.ToUpper(strings.TrimSpace(asset))
		amount = strings.TrimSpace(amount)
		if !ok || asset == "" {
			return nil, fmt.Errorf("invalid wallet entry %q: must be ASSET=AMOUNT", part)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s: must be a valid number", asset)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("invalid amount for %s: must not be negative", asset)
		}
		wallet[asset] = amount
	}
	if len(wallet) == 0 {
		return nil, fmt.Errorf("wallet cannot be empty")
	}
	return wallet, nil
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
