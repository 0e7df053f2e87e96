// Package logger provides a common logging setup for programs built on this
// module. The zap.Logger it produces can be handed to the fsattr, openat and
// tmpfile clients through their SetLogger options, so debug output from the
// system call layer lands in the same place as the application's own logs.
package logger

import (
	"fmt"
	"log/syslog"
	"os"
	"path"
	"reflect"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a wrapper around zap.Logger. It allows different aspects of the
// Logger to be reconfigured after the application has started, notably the
// log level.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config represents the configuration for a Logger.
type Config struct {
	Type            destination
	File            string
	Level           string
	MaxSize         int
	NumRotatedFiles int
	Developer       bool
}

type destination string

const (
	StdOut  destination = "stdout"
	LogFile destination = "logfile"
	// The syslog type is the slowest logging option due to how zap log
	// messages need to be translated to syslog messages and severity levels.
	Syslog destination = "syslog"
)

// SupportedDestinations lists the valid Config.Type values. Any destination
// added in the future must be added to this slice. It is used for printing
// help text, for example if an invalid type is specified.
var SupportedDestinations = []destination{
	StdOut,
	LogFile,
	Syslog,
}

// New returns a new logger based on the provided configuration.
func New(newConfig Config) (*Logger, error) {

	logMgr := Logger{}

	// Use the opinionated Zap development configuration. This notably gives
	// us stack traces at warn and error levels.
	if newConfig.Developer {
		// Ignore the configured level and log everything for developer
		// configurations.
		logMgr.level = zap.NewAtomicLevelAt(zapcore.DebugLevel)

		cfg := zap.NewDevelopmentConfig()
		cfg.Level = logMgr.level
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		logMgr.Logger = l
		return &logMgr, nil
	}

	// Otherwise build a production config based on the user settings:
	zapConfig := zap.NewProductionEncoderConfig()
	zapConfig.TimeKey = "timestamp"
	zapConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Then setup the encoder that will turn our log entries into byte
	// slices. For now just log in plaintext and don't expose an option to
	// log using JSON. We can always add an option later with
	// zapcore.NewJSONEncoder() if needed. IMPORTANT: If the encoding type
	// ever changes then the way we handle writing to syslog in
	// SyslogWriteSyncer.Write() MUST be updated accordingly.
	zapEncoder := zapcore.NewConsoleEncoder(zapConfig)

	// The use of an atomic level means we can update the log level later on.
	// However we have to keep a reference to the atomic level if we want to
	// adjust it later (which is why we add it to the logger struct).
	zapLevel, err := parseLevel(newConfig.Level)
	if err != nil {
		return nil, err
	}
	logMgr.level = zap.NewAtomicLevelAt(zapLevel)

	// zapcore.WriteSyncers are what handle writing the byte slices from the
	// encoder somewhere. This means we can easily add support for new types
	// of logging (i.e., log destinations) by simply swapping out the
	// WriteSyncer.
	var logDestination zapcore.WriteSyncer
	switch newConfig.Type {
	case StdOut:
		logDestination = zapcore.AddSync(os.Stdout)
	case LogFile:
		// Just being able to write to the provided log file is not
		// sufficient if we want to rotate log files. Make sure the directory
		// selected for logging exists and we can write to it.
		if err := ensureLogsAreWritable(newConfig.File); err != nil {
			return nil, err
		}

		logDestination = zapcore.AddSync(&lumberjack.Logger{
			Filename:   newConfig.File,
			MaxSize:    newConfig.MaxSize,
			MaxBackups: newConfig.NumRotatedFiles,
		})
	case Syslog:
		// By default we'll log at severity level info. Typically we'll be
		// able to parse out the log level and log at the appropriate
		// severity level. We'll use the process name as the prefix tag in
		// case there are multiple instances running on the same server.
		l, err := NewSyslogWriteSyncer(syslog.LOG_INFO|syslog.LOG_LOCAL0, os.Args[0])
		if err != nil {
			return nil, fmt.Errorf("unable to initialize syslog destination: %w", err)
		}
		logDestination = l
	default:
		return nil, fmt.Errorf("unsupported log type: %s", newConfig.Type)
	}

	logMgr.Logger = zap.New(zapcore.NewCore(zapEncoder, logDestination, logMgr.level))
	return &logMgr, nil
}

// SetLevel changes the log level of a running logger. Levels are named the
// way zapcore names them: debug, info, warn, or error.
func (lm *Logger) SetLevel(level string) error {

	newLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	// We don't set the component on the logging struct because then it would
	// be included in every log message. So instead set it up whenever we
	// need to log from the logging package.
	log := lm.Logger.With(zap.String("component", path.Base(reflect.TypeOf(Logger{}).PkgPath())))

	if lm.level.Level() != newLevel {
		lm.level.SetLevel(newLevel)
		log.Log(lm.level.Level(), "set log level", zap.Any("logLevel", lm.level.Level()))
	} else {
		log.Debug("no change to log level")
	}

	return nil
}

// parseLevel maps the level names accepted in configuration to Zap log
// levels.
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		// If we used zapcore.InvalidLevel we could cause a panic. So instead
		// return a sane level just in case something decides to ignore the
		// error and use the level we return anyway.
		return zapcore.InfoLevel, fmt.Errorf("the provided log level (%q) is invalid (must be debug, info, warn, or error)", level)
	}
}
