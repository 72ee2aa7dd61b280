package app

import (
	"github.com/omniquery/omniquery-backend/internal/platform/envutil"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

type Config struct {
	Host          string
	Port          string
	DataDir       string
	CrewConfigDir string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Host:          envutil.String("HOST", "0.0.0.0"),
		Port:          envutil.String("PORT", "8000"),
		DataDir:       envutil.String("DATA_DIR", "data"),
		CrewConfigDir: envutil.String("CREW_CONFIG_DIR", "config"),
	}
	log.Debug("Config loaded",
		"host", cfg.Host,
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"crew_config_dir", cfg.CrewConfigDir,
	)
	return cfg
}
