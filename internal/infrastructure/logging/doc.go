// Package logging provides structured logging for duuxlink.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields. Configured from the logging section:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log broker passwords or API tokens.
package logging
