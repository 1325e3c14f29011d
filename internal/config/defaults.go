package config

import "path/filepath"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			Token:       "${DESKBRIDGE_BOT_TOKEN}",
			ParseMode:   "HTML",
			DropPending: true,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "deskbridge.db"),
		},
		Health: HealthConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
	}
}
