package main

import (
	"time"

	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/file"
	"github.com/dmitrymomot/taskflow/pkg/httpserver"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/mongo"
	"github.com/dmitrymomot/taskflow/pkg/opensearch"
	"github.com/dmitrymomot/taskflow/pkg/ratelimiter"
	"github.com/dmitrymomot/taskflow/pkg/redis"
	"github.com/dmitrymomot/taskflow/svc/auth"
	"github.com/dmitrymomot/taskflow/svc/invite"
	"github.com/dmitrymomot/taskflow/svc/otp"
)

type appConfig struct {
	Env         string   `env:"APP_ENV" envDefault:"development"`
	Name        string   `env:"APP_NAME" envDefault:"Taskflow"`
	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:"," envDefault:"http://localhost:3000"`
	KeyPrefix   string   `env:"REDIS_KEY_PREFIX" envDefault:"taskflow:"`

	// OTP requests allowed per address and per client IP within the window.
	OTPPerAddress int           `env:"OTP_RATE_PER_ADDRESS" envDefault:"3"`
	OTPPerIP      int           `env:"OTP_RATE_PER_IP" envDefault:"10"`
	OTPRateWindow time.Duration `env:"OTP_RATE_WINDOW" envDefault:"10m"`
}

func (c appConfig) otpLimit(capacity int) ratelimiter.Config {
	return ratelimiter.Config{Capacity: capacity, RefillRate: capacity, RefillInterval: c.OTPRateWindow}
}

type config struct {
	App        appConfig
	HTTP       httpserver.Config
	Mongo      mongo.Config
	Redis      redis.Config
	OpenSearch opensearch.Config
	Email      email.Config
	Files      file.Config
	JWT        jwt.Config
	Auth       auth.Config
	Google     auth.GoogleConfig
	OTP        otp.Config
	Invite     invite.Config
}
