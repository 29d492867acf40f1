// Package logger builds *slog.Logger instances for the billing service.
//
// New takes functional options for format, level, static attributes and
// context extractors. Extractors run on every *Context call so request-scoped
// values such as the request ID end up on each record without threading a
// logger through every function.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "billingd"),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//
//	log.InfoContext(ctx, "checkout completed",
//		logger.UserID(userID),
//		logger.EventID(ev.ID),
//		logger.Tier(string(sub.Tier)),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
