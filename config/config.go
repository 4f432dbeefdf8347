package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server               Server
	Database             Database
	Log                  Log
	JWT                  JWT
	Redis                Redis
	PhonePe              PhonePe
	Reconcile            Reconcile
	GeminiApiKey         string
	FirstTestAchievement string
}

type Server struct {
	Port string
	Mode string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type Log struct {
	Level  string
	Pretty bool
}

type JWT struct {
	Secret string
	TTL    time.Duration
}

// Redis is optional. An empty Addr disables the live leaderboard index.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

type PhonePe struct {
	ClientID     string
	ClientSecret string
	Mode         string
	KeyIndex     int
	Timeout      time.Duration
	RedirectURL  string
	CallbackURL  string
}

type Reconcile struct {
	Cron        string
	GracePeriod time.Duration
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_PRETTY", true)
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("JWT_TTL", "24h")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PHONEPE_MODE", "UAT")
	viper.SetDefault("PHONEPE_KEY_INDEX", 1)
	viper.SetDefault("GATEWAY_TIMEOUT", "30s")
	viper.SetDefault("RECONCILE_CRON", "@every 5m")
	viper.SetDefault("RECONCILE_GRACE_PERIOD", "10m")
	viper.SetDefault("FIRST_TEST_ACHIEVEMENT", "First Test")
}

func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded into environment")
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Server.Mode = viper.GetString("GIN_MODE")
	config.Log.Level = viper.GetString("LOG_LEVEL")
	config.Log.Pretty = viper.GetBool("LOG_PRETTY")

	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")
	config.Database.SSLMode = viper.GetString("DATABASE_SSLMODE")

	config.JWT.Secret = viper.GetString("JWT_SECRET")
	config.JWT.TTL = viper.GetDuration("JWT_TTL")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.PhonePe.ClientID = viper.GetString("PHONEPE_CLIENT_ID")
	config.PhonePe.ClientSecret = viper.GetString("PHONEPE_CLIENT_SECRET")
	config.PhonePe.Mode = viper.GetString("PHONEPE_MODE")
	config.PhonePe.KeyIndex = viper.GetInt("PHONEPE_KEY_INDEX")
	config.PhonePe.Timeout = viper.GetDuration("GATEWAY_TIMEOUT")
	config.PhonePe.RedirectURL = viper.GetString("PHONEPE_REDIRECT_URL")
	config.PhonePe.CallbackURL = viper.GetString("PHONEPE_CALLBACK_URL")

	config.Reconcile.Cron = viper.GetString("RECONCILE_CRON")
	config.Reconcile.GracePeriod = viper.GetDuration("RECONCILE_GRACE_PERIOD")

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")
	config.FirstTestAchievement = viper.GetString("FIRST_TEST_ACHIEVEMENT")

	if config.JWT.Secret == "" {
		log.Warn().Msg("JWT_SECRET is not set, tokens are signed with an empty key")
	}

	log.Info().
		Str("port", config.Server.Port).
		Str("mode", config.Server.Mode).
		Str("dbHost", config.Database.Host).
		Str("dbName", config.Database.Name).
		Bool("redis", config.Redis.Addr != "").
		Str("phonepeMode", config.PhonePe.Mode).
		Msg("Config loaded")
	return &config, nil

}
