// Package config provides YAML configuration loading for snipevault.
//
// Configuration files may reference environment variables with the
// ${VAR_NAME} syntax, which are expanded before parsing. Durations are
// written as Go duration strings ("24h", "5m") and parsed into
// time.Duration values. Loaded configs are validated before use and
// missing optional fields fall back to sensible defaults.
package config
