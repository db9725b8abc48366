package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port                     int               `yaml:"port"`
		APIKeys                  map[string]string `yaml:"apiKeys"`
		RateLimitCapacity        int               `yaml:"rateLimitCapacity"`
		RateLimitRefillPerSecond int               `yaml:"rateLimitRefillPerSecond"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		Version string `yaml:"version"`
	} `yaml:"ai"`

	// Scanners maps a configured scanner's name to a criteria override
	// used when deciding whether a cached result is fresh enough
	// (SPEC_FULL.md §6).
	Scanners map[string]ScannerOverride `yaml:"scanners"`

	// Downloader.SourceCodeOrigins is decoded from YAML but not read by
	// cmd/orchestrate: the orchestrator and the AI backend always resolve
	// with provenance.DefaultPriority (VCS, then ARTIFACT), so setting it
	// does not change which origin a package resolves to.
	Downloader struct {
		SourceCodeOrigins []string `yaml:"sourceCodeOrigins"`
		ScratchRoot       string   `yaml:"scratchRoot"`
	} `yaml:"downloader"`
}

type ScannerOverride struct {
	MinVersion    string `yaml:"minScannerVersion"`
	MaxVersion    string `yaml:"maxScannerVersion"`
	NamePattern   string `yaml:"regScannerName"`
	Configuration string `yaml:"configuration"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MySQLDSN builds the go-sql-driver/mysql DSN from the Database block.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}
