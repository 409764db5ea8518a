package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug            bool
	TestMode         bool
	Env              string
	AppName          string
	SecretKey        []byte
	Build            string
	WorkDir          string
	DefaultFromEmail mail.Address
	FrontendBaseURL  string
	SendgridAPIKey   string
	RollbarToken     string

	Server struct {
		Host                      string
		Port                      int
		JWTExpirationDelta        time.Duration
		PasswordResetTimeoutDelta time.Duration
		RateLimitMaxRequests      int
		RateLimitWindow           time.Duration
	}

	Database struct {
		Name       string
		User       string
		Password   string
		AuthSource string
		Host       string
		Port       int
	}

	// BootstrapAdmin is created at startup when both fields are set.
	BootstrapAdmin struct {
		Email    string
		Password string
	}
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Tarpaulin")
	conf.SetDefault("secretKey", "+z@e#5t9%1r^ty-#%q$lmws+b1d5ey5b8$$grz!3gu9b=wn+3h")
	conf.SetDefault("build", "dev")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverPort", 8000)
	conf.SetDefault("jwtExpirationDelta", 24*time.Hour)
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("rateLimitMaxRequests", 10)
	conf.SetDefault("rateLimitWindow", 10*time.Second)
	conf.SetDefault("mongoDbName", "tarpaulin")
	conf.SetDefault("mongoUser", "")
	conf.SetDefault("mongoPassword", "")
	conf.SetDefault("mongoAuthDbName", "admin")
	conf.SetDefault("mongoHost", "localhost")
	conf.SetDefault("mongoPort", 27017)
	conf.SetDefault("bootstrapAdminEmail", "")
	conf.SetDefault("bootstrapAdminPassword", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         env == "TEST",
		Env:              env,
		AppName:          conf.GetString("appName"),
		SecretKey:        []byte(conf.GetString("secretKey")),
		Build:            conf.GetString("build"),
		WorkDir:          wd,
		DefaultFromEmail: mail.Address{Name: conf.GetString("appName"), Address: conf.GetString("defaultFromEmail")},
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		SendgridAPIKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
	}
	c.Server.Host = conf.GetString("serverHost")
	c.Server.Port = conf.GetInt("serverPort")
	c.Server.JWTExpirationDelta = conf.GetDuration("jwtExpirationDelta")
	c.Server.PasswordResetTimeoutDelta = conf.GetDuration("passwordResetTimeoutDelta")
	c.Server.RateLimitMaxRequests = conf.GetInt("rateLimitMaxRequests")
	c.Server.RateLimitWindow = conf.GetDuration("rateLimitWindow")
	c.Database.Name = conf.GetString("mongoDbName")
	c.Database.User = conf.GetString("mongoUser")
	c.Database.Password = conf.GetString("mongoPassword")
	c.Database.AuthSource = conf.GetString("mongoAuthDbName")
	c.Database.Host = conf.GetString("mongoHost")
	c.Database.Port = conf.GetInt("mongoPort")
	c.BootstrapAdmin.Email = conf.GetString("bootstrapAdminEmail")
	c.BootstrapAdmin.Password = conf.GetString("bootstrapAdminPassword")
	return c
}
