package gorm

import (
	"fmt"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

// NewGormLogger creates a gorm logger that writes through the logging facade.
// Statements are only traced at DEBUG; slow statements and errors are always reported.
func NewGormLogger(slowThreshold time.Duration) gormlogger.Interface {
	level := gormlogger.Warn
	if logger.GetLogLevel() == logger.LevelDebug {
		level = gormlogger.Info
	}
	if slowThreshold <= 0 {
		slowThreshold = 2 * time.Second
	}
	return gormlogger.New(
		NewGormWriter(),
		gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects gorm log output to the logging facade.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements gormlogger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	// Statement errors are returned to and logged by the caller.
	if strings.Contains(msg, "SLOW SQL") {
		logger.Warnf("[GORM] %s", msg)
		return
	}
	logger.Debugf("[GORM] %s", msg)
}
