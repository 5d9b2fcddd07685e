package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"` // dev | prod, drives logger output
	} `yaml:"server"`

	Database struct {
		Driver      string `yaml:"driver"` // mysql | postgres
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Name        string `yaml:"name"`
		SSLMode     string `yaml:"sslMode"`
		AutoMigrate bool   `yaml:"autoMigrate"`
	} `yaml:"database"`

	Uploads struct {
		Dir      string `yaml:"dir"`
		MaxBytes int64  `yaml:"maxBytes"`
	} `yaml:"uploads"`

	Classifier struct {
		Script      string        `yaml:"script"`
		VenvDir     string        `yaml:"venvDir"`
		Interpreter string        `yaml:"interpreter"` // overrides the venv lookup when set
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`

	Persistence struct {
		// FailClosed turns a failed insert into a failed request.
		FailClosed bool `yaml:"failClosed"`
	} `yaml:"persistence"`

	Redis struct {
		Addr       string        `yaml:"addr"` // empty means in-memory sessions
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		SessionTTL time.Duration `yaml:"sessionTTL"`
	} `yaml:"redis"`

	Auth struct {
		// nil means protected; set false to expose the listing publicly.
		ProtectUsers  *bool `yaml:"protectUsers"`
		ProtectStats  bool  `yaml:"protectStats"`
		SecureCookies bool  `yaml:"secureCookies"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
		// proxies allowed to set X-Forwarded-For; empty keys on the socket address
		TrustedProxies []string `yaml:"trustedProxies"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Load reads the YAML file at path, then lets the environment (and a .env file,
// when present) override credentials and addresses.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Classifier.Interpreter, "CLASSIFIER_INTERPRETER")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == "postgres" {
			c.Database.Port = 5432
		} else {
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = 10 << 20
	}
	if c.Classifier.Script == "" {
		c.Classifier.Script = "classify.py"
	}
	if c.Classifier.VenvDir == "" {
		c.Classifier.VenvDir = "venv"
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 2 * time.Minute
	}
	if c.Redis.SessionTTL <= 0 {
		c.Redis.SessionTTL = 24 * time.Hour
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillRate <= 0 {
		c.RateLimit.RefillRate = 1
	}
}

// UsersProtected reports whether /usuarios and /api/usuarios need a session.
func (c *Config) UsersProtected() bool {
	return c.Auth.ProtectUsers == nil || *c.Auth.ProtectUsers
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
