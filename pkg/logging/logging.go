// Package logging builds the service logger and scrubs secrets from values
// that end up in log lines.
package logging

import (
	"regexp"

	"go.uber.org/zap"
)

// NewLogger returns a production logger, or a human-friendly development
// logger when env is "local".
func NewLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

var (
	// password=... in key=value connection strings
	kvPasswordPattern = regexp.MustCompile(`(password=)\S+`)
	// ://user:password@ in URL-style connection strings
	urlPasswordPattern = regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+@`)
)

// SanitizeDSN redacts credential material from a connection string so it can
// be logged safely.
func SanitizeDSN(dsn string) string {
	dsn = kvPasswordPattern.ReplaceAllString(dsn, "${1}*****")
	return urlPasswordPattern.ReplaceAllString(dsn, "${1}*****@")
}

// SanitizeError redacts credential material from an error message. Driver
// errors frequently echo the connection string back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeDSN(err.Error())
}
