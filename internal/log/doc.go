// Package log provides slog loggers that mask sensitive information.
//
// The SecureHandler wraps any slog.Handler and sanitizes attributes before
// they are written:
//   - values under sensitive keys (authorization, cookie, password, token,
//     secret and similar) are replaced with MaskValue
//   - values that look like credentials (bearer tokens, JWTs, AWS access
//     keys, PEM private keys) are replaced with MaskValue
//   - passwords embedded in URLs, such as a postgres:// store DSN, are
//     replaced with "xxxxx" while the rest of the URL stays readable
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Info("database loaded", "store", "postgres://wm:hunter2@db/wm")
//	// store=postgres://wm:xxxxx@db/wm
package log
