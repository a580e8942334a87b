package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverREST  = "rest"
	StoreDriverMySQL = "mysql"
	StoreDriverRedis = "redis"

	azulProductionURL = "https://pagos.azul.com.do/WebServices/JSON/default.aspx"
	azulSandboxURL    = "https://pruebas.azul.com.do/WebServices/JSON/default.aspx"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Azul              AzulConfig
	Store             StoreConfig
	ThreeDS           ThreeDSConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type AzulConfig struct {
	Environment string
	URL         string
	MerchantID  string
	Auth1       string
	Auth2       string
	CertFile    string
	KeyFile     string
	CertB64     string
	KeyB64      string
	CAFile      string
	HTTPTimeout time.Duration
}

type StoreConfig struct {
	Driver      string
	CallTimeout time.Duration
	REST        RESTStoreConfig
	MySQL       MySQLConfig
	Redis       RedisConfig
}

type RESTStoreConfig struct {
	URL   string
	Key   string
	Table string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL         string
	KeyPrefix   string
	ApprovedTTL time.Duration
}

type ThreeDSConfig struct {
	PublicBaseURL    string
	ECommerceURL     string
	AllowedOrigin    string
	ReturnURL        string
	SessionRetention time.Duration
	PurgeOnInitiate  bool
}

type JobsConfig struct {
	PurgeInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	store := StoreConfig{
		Driver:      strings.ToLower(getEnv("SESSION_STORE_DRIVER", StoreDriverREST)),
		CallTimeout: getSecondsEnv("SESSION_STORE_TIMEOUT_SECONDS", 3*time.Second),
		REST: RESTStoreConfig{
			URL:   strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			Key:   getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			Table: getEnv("SESSION_STORE_TABLE", "sessions_3ds"),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", ""),
			KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "3ds:session:"),
			ApprovedTTL: getMinutesEnv("REDIS_APPROVED_TTL_MINUTES", 30*24*time.Hour),
		},
	}
	if err := validateStore(store); err != nil {
		return nil, err
	}

	merchantID := os.Getenv("AZUL_MERCHANT_ID")
	if merchantID == "" {
		return nil, errors.New("AZUL_MERCHANT_ID environment variable is required")
	}

	publicBaseURL := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "https://www.pincerweb.com"), "/")
	azulEnv := strings.ToLower(getEnv("AZUL_ENV", "development"))

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "azul-payments-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", ""),
		},
		Azul: AzulConfig{
			Environment: azulEnv,
			URL:         getEnv("AZUL_URL", azulBaseURL(azulEnv)),
			MerchantID:  merchantID,
			Auth1:       getEnv("AZUL_AUTH1", "3dsecure"),
			Auth2:       getEnv("AZUL_AUTH2", "3dsecure"),
			CertFile:    getEnv("AZUL_CERT_FILE", ""),
			KeyFile:     getEnv("AZUL_KEY_FILE", ""),
			CertB64:     getEnv("AZUL_CERT_B64", ""),
			KeyB64:      getEnv("AZUL_PRIVATE_KEY_B64", ""),
			CAFile:      getEnv("AZUL_CA_FILE", ""),
			HTTPTimeout: getMillisecondsEnv("AZUL_HTTP_TIMEOUT_MS", 9500*time.Millisecond),
		},
		Store: store,
		ThreeDS: ThreeDSConfig{
			PublicBaseURL:    publicBaseURL,
			ECommerceURL:     getEnv("AZUL_ECOMMERCE_URL", publicBaseURL),
			AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "https://www.pincerweb.com"),
			ReturnURL:        getEnv("THREEDS_RETURN_URL", publicBaseURL+"/"),
			SessionRetention: getMinutesEnv("THREEDS_SESSION_RETENTION_MINUTES", 15*time.Minute),
			PurgeOnInitiate:  getBoolEnv("THREEDS_PURGE_ON_INITIATE", true),
		},
		Jobs: JobsConfig{
			PurgeInterval: getMinutesEnv("THREEDS_PURGE_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func validateStore(store StoreConfig) error {
	switch store.Driver {
	case StoreDriverREST:
		if store.REST.URL == "" || store.REST.Key == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY environment variables are required for the rest session store")
		}
	case StoreDriverMySQL:
		if store.MySQL.DSN == "" {
			return errors.New("MYSQL_DSN environment variable is required for the mysql session store")
		}
	case StoreDriverRedis:
		if store.Redis.URL == "" {
			return errors.New("REDIS_URL environment variable is required for the redis session store")
		}
	default:
		return errors.New("SESSION_STORE_DRIVER must be rest, mysql, or redis")
	}
	return nil
}

func azulBaseURL(environment string) string {
	if environment == "production" {
		return azulProductionURL
	}
	return azulSandboxURL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
