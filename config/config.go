package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contém as configurações da aplicação
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64 // Chat/canal de fallback para notificações (opcional)

	KeepaAPIKey string
	KeepaDomain string // Domínio Amazon (ex: "it", "com", "com.br")

	CheckInterval        time.Duration
	MaxRequestsPerMinute int
	BatchSize            int
	NotificationCooldown time.Duration
	HistoryRetentionDays int
	MaxProductsPerUser   int

	DatabasePath string
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado")
	}

	keepaKey := os.Getenv("KEEPA_API_KEY")
	if keepaKey == "" {
		return nil, fmt.Errorf("KEEPA_API_KEY não configurado")
	}

	cfg := &Config{
		TelegramBotToken:     token,
		KeepaAPIKey:          keepaKey,
		KeepaDomain:          "it",
		MaxRequestsPerMinute: 20,
		BatchSize:            20,
		HistoryRetentionDays: 60,
		MaxProductsPerUser:   5,
		DatabasePath:         "./precos.db",
	}

	// Chat ID é opcional (usado como destino de fallback das notificações)
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		if chatID, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
			cfg.TelegramChatID = chatID
		}
	}

	if domain := os.Getenv("KEEPA_DOMAIN"); domain != "" {
		cfg.KeepaDomain = domain
	}

	cfg.CheckInterval = 300 * time.Second
	if v := os.Getenv("CHECK_INTERVAL_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.CheckInterval = time.Duration(parsed) * time.Second
		}
	}

	if v := os.Getenv("MAX_REQUESTS_PER_MINUTE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxRequestsPerMinute = parsed
		}
	}

	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.BatchSize = parsed
		}
	}

	cfg.NotificationCooldown = 3600 * time.Second
	if v := os.Getenv("NOTIFICATION_COOLDOWN_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			cfg.NotificationCooldown = time.Duration(parsed) * time.Second
		}
	}

	if v := os.Getenv("PRICE_HISTORY_RETENTION_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.HistoryRetentionDays = parsed
		}
	}

	if v := os.Getenv("MAX_PRODUCTS_PER_USER"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxProductsPerUser = parsed
		}
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		cfg.DatabasePath = path
	}

	return cfg, nil
}
