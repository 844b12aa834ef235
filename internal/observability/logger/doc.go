// Package logger provee un logger estructurado (zap) con patrón singleton
// y propagación por contexto.
//
// Uso básico:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info", ServiceName: "mockforge"})
//	defer logger.Sync()
//
//	log := logger.From(ctx)
//	log.Info("integration connected", logger.Platform("shopify"), logger.UserID(uid))
//
// Los middlewares HTTP inyectan un logger scoped (request_id, method, path)
// en el contexto; los services lo recuperan con From(ctx).
package logger
