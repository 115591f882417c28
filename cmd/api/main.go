// Command api serves the taskflow HTTP API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrymomot/taskflow/handler"
	authmodule "github.com/dmitrymomot/taskflow/modules/auth"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	projectmodule "github.com/dmitrymomot/taskflow/modules/project"
	teammodule "github.com/dmitrymomot/taskflow/modules/team"
	usermodule "github.com/dmitrymomot/taskflow/modules/user"
	"github.com/dmitrymomot/taskflow/pkg/clientip"
	appconfig "github.com/dmitrymomot/taskflow/pkg/config"
	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/environment"
	"github.com/dmitrymomot/taskflow/pkg/file"
	"github.com/dmitrymomot/taskflow/pkg/httpserver"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/mongo"
	"github.com/dmitrymomot/taskflow/pkg/opensearch"
	"github.com/dmitrymomot/taskflow/pkg/ratelimiter"
	"github.com/dmitrymomot/taskflow/pkg/rbac"
	"github.com/dmitrymomot/taskflow/pkg/redis"
	"github.com/dmitrymomot/taskflow/pkg/requestid"
	"github.com/dmitrymomot/taskflow/storage/mongostore"
	"github.com/dmitrymomot/taskflow/storage/redisstore"
	"github.com/dmitrymomot/taskflow/storage/searchindex"
	"github.com/dmitrymomot/taskflow/svc/auth"
	"github.com/dmitrymomot/taskflow/svc/invite"
	"github.com/dmitrymomot/taskflow/svc/otp"
	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
	"github.com/dmitrymomot/taskflow/svc/user"
)

func main() {
	var cfg config
	appconfig.MustLoad(&cfg)

	env := environment.Parse(cfg.App.Env)
	log := logger.New(
		logger.WithEnvironment(env, "taskflow-api"),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	slog.SetDefault(log)

	ctx := environment.WithContext(context.Background(), env)
	if err := run(ctx, cfg, log); err != nil {
		log.Error("api stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	mongoClient, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.WithoutCancel(ctx)) }()
	db := mongoClient.Database(cfg.Mongo.Database)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	checks := map[string]httpserver.Check{
		"mongo": mongo.Healthcheck(mongoClient),
		"redis": redis.Healthcheck(redisClient),
	}

	sender, err := email.New(cfg.Email)
	if err != nil {
		return err
	}
	tokens, err := jwt.New(cfg.JWT)
	if err != nil {
		return err
	}
	authz, err := rbac.NewAuthorizer(ctx, rbac.DefaultSource())
	if err != nil {
		return err
	}
	files, err := file.New(ctx, cfg.Files)
	if err != nil {
		return err
	}

	users := mongostore.NewUsers(db)
	userOpts := []user.Option{user.WithFileStorage(files), user.WithLogger(log)}
	if cfg.OpenSearch.Enabled() {
		osClient, err := opensearch.New(ctx, cfg.OpenSearch)
		if err != nil {
			return err
		}
		index := searchindex.NewUsers(osClient, cfg.OpenSearch.UsersIndex)
		if err := index.EnsureIndex(ctx); err != nil {
			return err
		}
		userOpts = append(userOpts, user.WithSearcher(index))
		checks["opensearch"] = opensearch.Healthcheck(osClient)
	}
	userSvc := user.NewService(users, userOpts...)

	prefix := cfg.App.KeyPrefix
	authOpts := []auth.Option{auth.WithIndexer(userSvc), auth.WithLogger(log)}
	if cfg.Google.Enabled() {
		authOpts = append(authOpts, auth.WithGoogle(
			auth.NewGoogleProvider(cfg.Google),
			redisstore.NewStates(redisClient, prefix),
			cfg.Google.StateTTL,
		))
	}
	authSvc := auth.NewService(cfg.Auth, users, tokens,
		redisstore.NewRevocations(redisClient, prefix),
		redisstore.NewTickets(redisClient, prefix),
		authOpts...,
	)

	limits := ratelimiter.NewRedisStore(redisClient)
	perAddress, err := ratelimiter.NewBucket(limits, prefix+"otp_address", cfg.App.otpLimit(cfg.App.OTPPerAddress))
	if err != nil {
		return err
	}
	perIP, err := ratelimiter.NewBucket(limits, prefix+"otp_ip", cfg.App.otpLimit(cfg.App.OTPPerIP))
	if err != nil {
		return err
	}
	otpSvc := otp.NewService(cfg.OTP, redisstore.NewCodes(redisClient, prefix), sender, authSvc,
		otp.WithLimiter(perAddress),
		otp.WithLogger(log),
	)

	invites := invite.NewService(cfg.Invite, redisstore.NewInviteRedemptions(redisClient, prefix), sender, log)
	projectSvc := project.NewService(mongostore.NewProjects(db), users, userSvc, invites, authz, log)
	teamSvc := team.NewService(mongostore.NewTeams(db), users, projectSvc, userSvc, invites, authz, log)

	errorHandler := handler.NewErrorHandler(log)
	requireAuth := jwt.Middleware(authSvc, httperr.Unauthorized)

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		requestid.Middleware,
		clientip.Middleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.App.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", requestid.Header},
			ExposedHeaders:   []string{requestid.Header, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, checks))

	if !cfg.Files.Enabled() && strings.HasPrefix(cfg.Files.LocalBaseURL, "/") {
		base := strings.TrimSuffix(cfg.Files.LocalBaseURL, "/") + "/"
		r.Handle(base+"*", http.StripPrefix(base, http.FileServer(http.Dir(cfg.Files.LocalDir))))
	}

	r.Route("/api", func(api chi.Router) {
		api.Mount("/auth", authmodule.New(authSvc, otpSvc, requireAuth,
			authmodule.WithOTPLimiter(perIP),
			authmodule.WithErrorHandler(errorHandler),
		).Handle())
		api.Mount("/users", usermodule.New(userSvc, projectSvc, teamSvc, requireAuth,
			usermodule.WithErrorHandler(errorHandler),
		).Handle())
		api.Mount("/project", projectmodule.New(projectSvc, requireAuth,
			projectmodule.WithErrorHandler(errorHandler),
		).Handle())
		api.Mount("/team", teammodule.New(teamSvc, requireAuth,
			teammodule.WithErrorHandler(errorHandler),
		).Handle())
	})

	return httpserver.New(cfg.HTTP, log).Run(ctx, r)
}
