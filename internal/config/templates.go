package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Opinion Arena Configuration

[system]
# Master switch. When false the engine refuses to run cycles.
enabled = true
log_level = "info"

[server]
host = "0.0.0.0"
port = 8080
allowed_origins = ["*"]
read_timeout = "30s"
write_timeout = "16m"

[database]
# Single-file SQLite database, WAL mode.
path = ""

[venue]
base_url = "https://api.opinion.trade"
timeout = "30s"
max_retries = 3

[bankroll]
# TEST: 50 per firm with a 5/day spend cap. PRODUCTION: 5000 per firm.
mode = "TEST"
# Leave at 0 to derive from mode.
initial_balance = 0.0
daily_spend_cap = 0.0

[risk]
suspend_below = 0.50
max_category_exposure = 30.0

[risk.conservative]
min_ratio = 0.85
max_bet_pct = 2.0
daily_loss_pct = 10.0
max_daily_bets = 5

[risk.defensive]
min_ratio = 0.70
max_bet_pct = 1.0
daily_loss_pct = 7.0
max_daily_bets = 3

[risk.recovery]
min_ratio = 0.60
max_bet_pct = 0.5
daily_loss_pct = 5.0
max_daily_bets = 2

[risk.emergency]
min_ratio = 0.50
max_bet_pct = 0.25
daily_loss_pct = 3.0
max_daily_bets = 1

[engine]
fee_rate = 0.02
min_bet = 1.50
kelly_fraction = 0.25
martingale_base = 1.5
martingale_cap = 3.0
anti_martingale_base = 1.3
anti_martingale_cap = 3.0
proportional_pct = 1.5

[cycle]
deadline = "15m"
page_size = 20
max_markets = 200
markets_per_firm = 10
cron_spec = "0 12 * * *"

[monitor]
cron_spec = "*/30 * * * *"
# One review per order per interval, however many triggers fire.
interval = "30m"
max_strikes = 3
price_delta_pct = 15.0
max_age = "168h"

[collectors]
news_base_url = "https://newsapi.org"
sentiment_base_url = "https://api.sentiment.market"
timeout = "10s"

# Secrets come from the environment, never from this file:
#   VENUE_API_KEY, WALLET_PRIVATE_KEY, MONITOR_SECRET,
#   OPENAI_API_KEY, GEMINI_API_KEY, QWEN_API_KEY, DEEPSEEK_API_KEY,
#   GROK_API_KEY, NEWS_API_KEY, SENTIMENT_API_KEY
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
