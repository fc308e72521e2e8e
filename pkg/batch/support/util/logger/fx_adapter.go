package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLogger routes fx lifecycle events through the logging facade.
// Wiring details are logged at DEBUG so that a normal run only shows failures.
type FxLogger struct{}

// NewFxLogger creates a new fxevent.Logger backed by the facade.
func NewFxLogger() fxevent.Logger {
	return &FxLogger{}
}

// LogEvent logs events from fx.
func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook failed: %s: %v", shortFuncName(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStart hook executed: %s (%s)", shortFuncName(e.FunctionName), e.Runtime)
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook failed: %s: %v", shortFuncName(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStop hook executed: %s (%s)", shortFuncName(e.FunctionName), e.Runtime)
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply failed for %s: %v", e.TypeName, e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Provide failed in %s: %v", shortFuncName(e.ConstructorName), e.Err)
			return
		}
		Debugf("Provided %s", strings.Join(e.OutputTypeNames, ", "))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke failed: %s: %v", shortFuncName(e.FunctionName), e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Application start failed: %v", e.Err)
			return
		}
		Debugf("Application started.")
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Application stop failed: %v", e.Err)
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("fx logger initialization failed: %v", e.Err)
		}
	}
}

// shortFuncName strips closure suffixes such as ".func1" from fx function names.
func shortFuncName(name string) string {
	if idx := strings.LastIndex(name, ".func"); idx != -1 {
		return name[:idx]
	}
	return name
}
