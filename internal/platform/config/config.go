package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config/config.yaml"

	ModeDev     = "dev"
	ModeRelease = "release"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	Certificate Certs    `yaml:"certificate"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type AttendanceConfig struct {
	Timezone string `yaml:"timezone"`
}

type OSSConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

type StorageConfig struct {
	Driver         string    `yaml:"driver"` // local | oss
	LocalDir       string    `yaml:"local_dir"`
	PublicBaseURL  string    `yaml:"public_base_url"`
	MaxImageWidth  int       `yaml:"max_image_width"`
	MaxImageHeight int       `yaml:"max_image_height"`
	JPEGQuality    int       `yaml:"jpeg_quality"`
	MaxUploadMB    int64     `yaml:"max_upload_mb"`
	OSS            OSSConfig `yaml:"oss"`
}

type NotifyConfig struct {
	FirebaseCredentials string        `yaml:"firebase_credentials"`
	QueueSize           int           `yaml:"queue_size"`
	Workers             int           `yaml:"workers"`
	MaxRetries          int           `yaml:"max_retries"`
	BaseBackoff         time.Duration `yaml:"base_backoff"`
	StaleTokenDays      int           `yaml:"stale_token_days"`
	ReaperSchedule      string        `yaml:"reaper_schedule"`
	IncompleteSchedule  string        `yaml:"incomplete_schedule"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type Config struct {
	Version    string           `yaml:"version"`
	Mode       string           `yaml:"mode"`
	Locale     string           `yaml:"locale"`
	Server     ServerConfig     `yaml:"server"`
	DB         DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Storage    StorageConfig    `yaml:"storage"`
	Notify     NotifyConfig     `yaml:"notify"`
	Mongo      MongoConfig      `yaml:"mongo"`
}

// Load reads the YAML file, applies .env / environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] no .env file found, using system environment")
	}
	if p := os.Getenv("SIKON_CONFIG"); p != "" {
		path = p
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(buf)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Parse(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides secrets and connection settings from the environment.
func (c *Config) ApplyEnv() {
	setString(&c.Mode, "SIKON_MODE")
	setString(&c.DB.Host, "DB_HOST")
	setInt(&c.DB.Port, "DB_PORT")
	setString(&c.DB.Username, "DB_USER")
	setString(&c.DB.Password, "DB_PASSWORD")
	setString(&c.DB.DBName, "DB_NAME")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Mongo.URI, "MONGODB_URI")
	setString(&c.Mongo.Database, "MONGODB_DATABASE")
	setString(&c.Notify.FirebaseCredentials, "FIREBASE_CREDENTIALS")
	setString(&c.Storage.OSS.Endpoint, "ALI_OSS_ENDPOINT")
	setString(&c.Storage.OSS.AccessKeyID, "ALI_OSS_ACCESS_KEY")
	setString(&c.Storage.OSS.AccessKeySecret, "ALI_OSS_SECRET_KEY")
	setString(&c.Storage.OSS.Bucket, "ALI_OSS_BUCKET")
}

func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDev
	}
	if c.Locale == "" {
		c.Locale = "id"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Attendance.Timezone == "" {
		c.Attendance.Timezone = "Asia/Jakarta"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "uploads"
	}
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = "/uploads"
	}
	if c.Storage.MaxImageWidth == 0 {
		c.Storage.MaxImageWidth = 1280
	}
	if c.Storage.MaxImageHeight == 0 {
		c.Storage.MaxImageHeight = 1280
	}
	if c.Storage.JPEGQuality == 0 {
		c.Storage.JPEGQuality = 80
	}
	if c.Storage.MaxUploadMB == 0 {
		c.Storage.MaxUploadMB = 10
	}
	if c.Notify.QueueSize == 0 {
		c.Notify.QueueSize = 256
	}
	if c.Notify.Workers == 0 {
		c.Notify.Workers = 2
	}
	if c.Notify.MaxRetries == 0 {
		c.Notify.MaxRetries = 3
	}
	if c.Notify.BaseBackoff == 0 {
		c.Notify.BaseBackoff = 2 * time.Second
	}
	if c.Notify.StaleTokenDays == 0 {
		c.Notify.StaleTokenDays = 90
	}
	if c.Notify.ReaperSchedule == "" {
		c.Notify.ReaperSchedule = "15 2 * * *"
	}
	if c.Notify.IncompleteSchedule == "" {
		c.Notify.IncompleteSchedule = "5 0 * * *"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "sikon"
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("invalid mode %q (dev|release)", c.Mode)
	}
	if c.Storage.Driver != "local" && c.Storage.Driver != "oss" {
		return fmt.Errorf("invalid storage driver %q (local|oss)", c.Storage.Driver)
	}
	if c.Mode == ModeRelease && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required in release mode")
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		return fmt.Errorf("invalid attendance.timezone: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
