// Package logger builds the service's slog.Logger and provides attribute
// helpers so log keys stay consistent across packages.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "taskflow"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "user registered", logger.UserID(user.ID), logger.Component("auth"))
package logger
