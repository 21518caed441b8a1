package config

// Config holds all configuration for the application.
type Config struct {
	DBName    string
	Port      string
	Slack     SlackConfig
	Turso     TursoConfig
	Inngest   InngestConfig
	ProjectID string
	Admin     AdminConfig
	Ladder    LadderConfig
}
type SlackConfig struct {
	Token     string
	ChannelID string
}
type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}
type InngestConfig struct {
	SigningKey string
	EventKey   string
	AppID      string
}

// Enabled reports whether the inngest functions should be served.
func (c InngestConfig) Enabled() bool {
	return c.AppID != ""
}

type AdminConfig struct {
	JWTSecret      string
	AllowedOrigins []string
}

// LadderConfig holds the matchmaking tunables.
type LadderConfig struct {
	Season            int
	VotekickThreshold int
	UnderdogDiff      int
	TopK              int
	UseRoles          bool
	RoleWeight        float64
	TieEpsilon        float64
	RatingPolicy      string
	RatingK           int
	WaitingTimeMins   int
	// AFKAfterMins flags open queue members silent for this long; 0 disables.
	AFKAfterMins int
	// FilterPolicy selects the rating used for channel windows: "ladder" or "max".
	FilterPolicy string
}
