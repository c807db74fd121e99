package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of every command.
type Config struct {
	Port           string        `yaml:"port"`
	APIPort        string        `yaml:"api_port"`
	APIURL         string        `yaml:"api_url"`
	DBPath         string        `yaml:"db_path"`
	JWTSecret      string        `yaml:"jwt_secret"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RoleTTL        time.Duration `yaml:"role_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SMTP           SMTPSettings  `yaml:"smtp"`
}

type SMTPSettings struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func defaultConfig() Config {
	return Config{
		Port:           "3001",
		APIPort:        "5000",
		DBPath:         "./microjobs.db",
		RoleTTL:        5 * time.Minute,
		RequestTimeout: 10 * time.Second,
		SMTP:           SMTPSettings{Port: "587"},
	}
}

// LoadConfig builds the configuration from the defaults, then the YAML file
// at path (if any), then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.APIURL == "" {
		cfg.APIURL = "http://localhost:" + cfg.APIPort
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Port, "PORT")
	setString(&c.APIPort, "API_PORT")
	setString(&c.APIURL, "API_URL")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
}

// LoadEnv loads environment variables from a .env file. A missing file is
// not an error.
func LoadEnv(filename string) error {
	// Open the .env file
	file, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	// Read the file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on the first equals sign
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue // Skip malformed lines
		}

		// Trim spaces and optional quotes from the value
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Variables already set in the environment win
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, value)
	}

	return scanner.Err()
}
