package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite3"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		Env          string
		Build        string
		AppName      string
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
		Allocation   AllocationConfig
	}

	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine string
		DSN    string
	}

	// AllocationConfig configures the client side of the allocation engine.
	AllocationConfig struct {
		APIBaseURL      string
		APIToken        string
		DebounceWindow  time.Duration
		ValidateTimeout time.Duration
		FetchTimeout    time.Duration
	}
)

// NewConfig reads the configuration from the environment.
// Variables are prefixed with the upper-cased ENV (DEV by default), e.g. DEV_DATABASE_DSN,
// and may be loaded from config/.env.<env> at the project root.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "MarkAlloc")
	conf.SetDefault("build", "dev")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.disableReqLogs", false)
	conf.SetDefault("database.engine", EngineMemory)
	conf.SetDefault("database.dsn", "")
	conf.SetDefault("allocation.apiBaseURL", "http://localhost:8000")
	conf.SetDefault("allocation.apiToken", "")
	conf.SetDefault("allocation.debounceWindow", 300*time.Millisecond)
	conf.SetDefault("allocation.validateTimeout", 10*time.Second)
	conf.SetDefault("allocation.fetchTimeout", 15*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		Env:          strings.ToLower(env),
		Build:        conf.GetString("build"),
		AppName:      conf.GetString("appName"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			Host:            conf.GetString("server.host"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine: strings.ToLower(conf.GetString("database.engine")),
			DSN:    conf.GetString("database.dsn"),
		},
		Allocation: AllocationConfig{
			APIBaseURL:      strings.TrimRight(conf.GetString("allocation.apiBaseURL"), "/"),
			APIToken:        conf.GetString("allocation.apiToken"),
			DebounceWindow:  conf.GetDuration("allocation.debounceWindow"),
			ValidateTimeout: conf.GetDuration("allocation.validateTimeout"),
			FetchTimeout:    conf.GetDuration("allocation.fetchTimeout"),
		},
	}
}
