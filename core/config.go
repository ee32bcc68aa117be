package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	SessionConfig struct {
		CookieName           string
		AccessTTL            time.Duration
		RefreshTTL           time.Duration
		ReaperSchedule       string
		ReaperRetention      time.Duration
		DefaultStaffPassword string
	}

	// LinksConfig holds the outbound links shown on the login page.
	LinksConfig struct {
		SiakadURL  string
		WebsiteURL string
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration
		RedisURL                  string
		KafkaBrokers              []string
		KafkaTopic                string

		Server   ServerConfig
		Database DatabaseConfig
		Session  SessionConfig
		Links    LinksConfig

		defaultFromEmail string
	}
)

func (c *DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig loads the configuration for the current ENV (DEV by default).
func NewConfig() *Config {
	v := viper.New()

	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Fathus Salafi LMS")
	v.SetDefault("secretKey", "x1n%u8l@6pq^k=y0bd!w*3c9r$a7m+h2e-zs4fjvo5gt(ti)")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "LMS Yayasan Fathus Salafi <noreply@yayasan-fatsal.com>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("kafkaTopic", "lms.auth.state")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "lms")
	v.SetDefault("database.user", "lms")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("session.cookieName", "lms_session")
	v.SetDefault("session.accessTTL", 1*time.Hour)
	v.SetDefault("session.refreshTTL", 7*24*time.Hour)
	v.SetDefault("session.reaperSchedule", "@every 1h")
	v.SetDefault("session.reaperRetention", 7*24*time.Hour)
	v.SetDefault("session.defaultStaffPassword", "TempPassword123!")

	v.SetDefault("links.siakadURL", "https://siakad.yayasan-fatsal.com")
	v.SetDefault("links.websiteURL", "https://yayasan-fatsal.com")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RedisURL:                  v.GetString("redisURL"),
		KafkaBrokers:              splitList(v.GetString("kafkaBrokers")),
		KafkaTopic:                v.GetString("kafkaTopic"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Session: SessionConfig{
			CookieName:           v.GetString("session.cookieName"),
			AccessTTL:            v.GetDuration("session.accessTTL"),
			RefreshTTL:           v.GetDuration("session.refreshTTL"),
			ReaperSchedule:       v.GetString("session.reaperSchedule"),
			ReaperRetention:      v.GetDuration("session.reaperRetention"),
			DefaultStaffPassword: v.GetString("session.defaultStaffPassword"),
		},
		Links: LinksConfig{
			SiakadURL:  v.GetString("links.siakadURL"),
			WebsiteURL: v.GetString("links.websiteURL"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config with test friendly values. It never reads the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "LMS Test",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		KafkaTopic:                "lms.auth.state",
		Server:                    ServerConfig{Host: ":0", ShutdownTimeout: time.Second},
		Session: SessionConfig{
			CookieName:           "lms_session",
			AccessTTL:            time.Hour,
			RefreshTTL:           24 * time.Hour,
			ReaperSchedule:       "@every 1h",
			ReaperRetention:      24 * time.Hour,
			DefaultStaffPassword: "TempPassword123!",
		},
		Links: LinksConfig{
			SiakadURL:  "https://siakad.test",
			WebsiteURL: "https://website.test",
		},
		defaultFromEmail: "noreply@lms.test",
	}
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
