// Package logging provides structured, context-aware logging for namingd.
//
// Loggers wrap zap. Every context-aware method pulls correlation fields
// (OpenTelemetry trace and span ids, the request id) out of the context so
// handlers do not have to thread them by hand.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer logger.Sync()
//
//	logger.Info(ctx, "mirror resynced", zap.String("collection", "morphemes"))
//
// Components that only need a plain logger take a *zap.Logger, obtained
// with Logger.Underlying.
package logging
