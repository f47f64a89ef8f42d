package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Approval store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
)

type Config struct {
	AppEnv          string
	LogLevel        string
	HTTPAddr        string
	RequestTimeout  time.Duration
	MetricsAddr     string
	ApprovalBackend string
	MySQLDSN        string
	RedisAddr       string
	RedisDB         int
	RedisPass       string

	HostawayBase    string
	HostawayAccount string
	HostawayKey     string
	PlacesBase      string
	PlacesKey       string
	PlaceMapPath    string

	ProviderTimeout time.Duration
	ProviderRPS     int
	PageSize        int
	CacheTTL        time.Duration

	// Warnings collected by Load; logged by LogWarnings once the process
	// logger is configured.
	Warnings []string
}

func Load() Config {
	var warns []string
	atoi := func(k string, def int) int {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			warns = append(warns, fmt.Sprintf("ignoring non-numeric %s=%q", k, v))
		}
		return def
	}
	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		LogLevel:        env("LOG_LEVEL", ""),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		RequestTimeout:  time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		MetricsAddr:     env("METRICS_ADDR", ":9100"),
		ApprovalBackend: strings.ToLower(env("APPROVAL_BACKEND", BackendMemory)),
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		HostawayBase:    env("HOSTAWAY_BASE_URL", "https://api.hostaway.com/v1"),
		HostawayAccount: env("HOSTAWAY_ACCOUNT_ID", ""),
		HostawayKey:     env("HOSTAWAY_API_KEY", ""),
		PlacesBase:      env("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesKey:       env("PLACES_API_KEY", ""),
		PlaceMapPath:    env("PLACE_MAP_PATH", "config/places.yaml"),
		ProviderTimeout: time.Duration(atoi("PROVIDER_TIMEOUT_SECONDS", 8)) * time.Second,
		ProviderRPS:     atoi("PROVIDER_RPS", 5),
		PageSize:        atoi("PROVIDER_PAGE_SIZE", 100),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
	switch c.ApprovalBackend {
	case BackendMemory, BackendRedis, BackendMySQL:
	default:
		warns = append(warns, fmt.Sprintf("unknown APPROVAL_BACKEND %q; using memory", c.ApprovalBackend))
		c.ApprovalBackend = BackendMemory
	}
	if c.HostawayAccount == "" || c.HostawayKey == "" {
		warns = append(warns, "HOSTAWAY_ACCOUNT_ID/HOSTAWAY_API_KEY empty; hostaway reviews come from fixtures")
	}
	if c.PlacesKey == "" {
		warns = append(warns, "PLACES_API_KEY empty; google reviews come from fixtures")
	}
	c.Warnings = warns
	return c
}

func (c Config) LogWarnings() {
	for _, w := range c.Warnings {
		log.Warn().Msg(w)
	}
}

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
