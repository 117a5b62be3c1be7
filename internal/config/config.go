package config

import "os"

type AppConfig struct {
	HTTPAddr string
	APIKey   string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	EscrowChargeFeeOnRefund bool
	EscrowFreezeDisputed    bool

	RedisAddr string
	RedisPass string

	KafkaBrokers string
	KafkaTopic   string

	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaPassKey        string
	MpesaShortCode      string
	MpesaCallbackURL    string

	CardBaseURL     string
	CardSecretKey   string
	CardCallbackURL string

	BankBaseURL     string
	BankAPIKey      string
	BankCallbackURL string
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8030"),
		APIKey:   getEnv("API_KEY", ""),

		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "payments"),

		EscrowChargeFeeOnRefund: getEnv("ESCROW_CHARGE_FEE_ON_REFUND", "false") == "true",
		EscrowFreezeDisputed:    getEnv("ESCROW_FREEZE_DISPUTED", "false") == "true",

		RedisAddr: getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "ledger-events"),

		MpesaBaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		MpesaConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
		MpesaPassKey:        getEnv("MPESA_PASS_KEY", ""),
		MpesaShortCode:      getEnv("MPESA_SHORT_CODE", ""),
		MpesaCallbackURL:    getEnv("MPESA_CALLBACK_URL", ""),

		CardBaseURL:     getEnv("CARD_BASE_URL", ""),
		CardSecretKey:   getEnv("CARD_SECRET_KEY", ""),
		CardCallbackURL: getEnv("CARD_CALLBACK_URL", ""),

		BankBaseURL:     getEnv("BANK_BASE_URL", ""),
		BankAPIKey:      getEnv("BANK_API_KEY", ""),
		BankCallbackURL: getEnv("BANK_CALLBACK_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
