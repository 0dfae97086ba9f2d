package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/utils"
)

// maxLoggedFieldErrors caps the field errors written per rejected request
const maxLoggedFieldErrors = 5

// ServiceLogger writes one structured line per service operation
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service   string
	Component string
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// classify picks the level and status label for an operation outcome.
// Expected outcomes such as a credit shortfall or a busy session are not errors.
func classify(err error) (slog.Level, string) {
	switch {
	case err == nil:
		return slog.LevelInfo, "success"
	case IsInsufficientCredits(err):
		return slog.LevelInfo, "insufficient_credits"
	case IsConflict(err):
		return slog.LevelInfo, "conflict"
	case IsNotFound(err):
		return slog.LevelInfo, "not_found"
	case IsValidation(err):
		return slog.LevelWarn, "validation_error"
	case IsUnauthorized(err):
		return slog.LevelWarn, "unauthorized"
	case IsUnavailable(err):
		return slog.LevelWarn, "unavailable"
	default:
		return slog.LevelError, "error"
	}
}

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID, resourceID, resourceType string, duration time.Duration, err error) {
	level, status := classify(err)

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if resourceID != "" {
		attrs = append(attrs, slog.String("resource_id", resourceID), slog.String("resource_type", resourceType))
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if fieldErrs, ok := err.(ValidationErrors); ok {
			attrs = append(attrs, fieldErrorAttrs(fieldErrs)...)
		}
		if level == slog.LevelError {
			if _, file, line, ok := runtime.Caller(2); ok {
				attrs = append(attrs, slog.String("caller_file", file), slog.Int("caller_line", line))
			}
		}
	}

	l.logger.LogAttrs(ctx, level, operation+" "+status, attrs...)
}

func fieldErrorAttrs(errs ValidationErrors) []slog.Attr {
	attrs := []slog.Attr{slog.Int("validation_errors_count", len(errs))}
	for i, e := range errs {
		if i == maxLoggedFieldErrors {
			break
		}
		attrs = append(attrs, slog.Group("field_error",
			slog.String("field", e.Field),
			slog.String("message", e.Message),
		))
	}
	return attrs
}

// Operation times a single service call and logs its outcome once
type Operation struct {
	logger    *ServiceLogger
	ctx       context.Context
	operation string
	userID    string
	startTime time.Time
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *Operation {
	return &Operation{
		logger:    l,
		ctx:       ctx,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
	}
}

func (o *Operation) LogResult(resourceID, resourceType string, err error) {
	o.logger.LogOperation(o.ctx, o.operation, o.userID, resourceID, resourceType, time.Since(o.startTime), err)
}
