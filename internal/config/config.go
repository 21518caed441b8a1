package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}

	cfg := Config{
		DBName: getEnv("DB_NAME"),
		Slack: SlackConfig{
			Token:     getEnv("SLACK_BOT_TOKEN"),
			ChannelID: getEnv("SLACK_CHANNEL_ID"),
		},
		Port: getEnv("PORT"),
		Turso: TursoConfig{
			PrimaryURL: os.Getenv("TURSO_PRIMARY_URL"),
			AuthToken:  os.Getenv("TURSO_AUTH_TOKEN"),
		},
		Inngest: InngestConfig{
			AppID:      os.Getenv("INNGEST_APP_ID"),
			SigningKey: os.Getenv("INNGEST_SIGNING_KEY"),
			EventKey:   os.Getenv("INNGEST_EVENT_KEY"),
		},
		ProjectID: os.Getenv("GCP_PROJECT"),
		Admin: AdminConfig{
			JWTSecret:      getEnv("ADMIN_JWT_SECRET"),
			AllowedOrigins: splitList(getEnvOr("CORS_ALLOWED_ORIGINS", "*")),
		},
		Ladder: LoadLadder(),
	}
	return cfg
}

// LoadLadder reads the ladder settings, all of which are optional.
func LoadLadder() LadderConfig {
	return LadderConfig{
		Season:            getInt("CURRENT_SEASON", 1),
		VotekickThreshold: getInt("VOTEKICK_THRESHOLD", 5),
		UnderdogDiff:      getInt("UNDERDOG_DIFF", 200),
		TopK:              getInt("BALANCE_TOP_K", 1),
		UseRoles:          getBool("BALANCE_USE_ROLES", false),
		RoleWeight:        getFloat("BALANCE_ROLE_WEIGHT", 0),
		TieEpsilon:        getFloat("BALANCE_TIE_EPSILON", 0),
		RatingPolicy:      getEnvOr("RATING_POLICY", "flat"),
		RatingK:           getInt("RATING_K", 25),
		WaitingTimeMins:   getInt("WAITING_TIME_MINS", 15),
		AFKAfterMins:      getInt("AFK_AFTER_MINS", 30),
		FilterPolicy:      getEnvOr("FILTER_POLICY", "ladder"),
	}
}

func getEnvOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("Invalid integer setting, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn("Invalid number setting, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn("Invalid boolean setting, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
