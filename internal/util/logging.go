package util

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LoggingError logs and returns the given error.
func LoggingError(err error) error {
	logrus.WithError(err).Error()
	return err
}

// LoggingNewError creates a new error from the message, logs it, and returns it.
func LoggingNewError(msg string) error {
	err := errors.New(msg)
	logrus.WithError(err).Error()
	return err
}

// LoggingNewErrorf creates a new formatted error, logs it, and returns it.
func LoggingNewErrorf(format string, args ...any) error {
	err := errors.Errorf(format, args...)
	logrus.WithError(err).Error()
	return err
}

// LoggingErrorMsg wraps the error with a message, logs it, and returns the wrapped error.
func LoggingErrorMsg(err error, msg string) error {
	wrapped := errors.Wrap(err, msg)
	logrus.WithError(err).Error(SanitizeLog(msg))
	return wrapped
}

// LoggingErrorMsgf wraps the error with a formatted message, logs it, and returns the wrapped error.
func LoggingErrorMsgf(err error, format string, args ...any) error {
	wrapped := errors.Wrapf(err, format, args...)
	logrus.WithError(err).Error(SanitizeLog(wrapped.Error()))
	return wrapped
}
