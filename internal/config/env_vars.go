package config

type EnvVars struct {
	AppName      string `env:"APP_NAME" envDefault:"Vehicle Market"`
	APIBaseURL   string `env:"MARKET_API_URL" envDefault:"https://avdsback2.pythonanywhere.com/api" validate:"required,url"`
	MediaBaseURL string `env:"MARKET_MEDIA_URL" envDefault:"https://avdsback2.pythonanywhere.com/" validate:"required,url"`
	DataFolder   string `env:"FOLDER" envDefault:"./data"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error disabled"`
	Env          string `env:"ENV" envDefault:"DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetAPIBaseURL returns the REST root every endpoint path is appended to,
// e.g. "https://market.example.com/api".
func (e EnvVars) GetAPIBaseURL() string {
	return e.APIBaseURL
}

// GetMediaBaseURL returns the host that relative image paths are resolved against.
func (e EnvVars) GetMediaBaseURL() string {
	return e.MediaBaseURL
}

func (e EnvVars) GetDataFolder() string {
	return e.DataFolder
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetEnv() string {
	return e.Env
}
