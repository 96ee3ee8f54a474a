package watchdog

import "log"

// LogListener is the default listener. It writes the rendered stall
// event through a standard logger.
type LogListener struct {
	logger *log.Logger
}

// NewLogListener returns a listener writing to logger, or to the default
// logger when logger is nil.
func NewLogListener(logger *log.Logger) *LogListener {
	if logger == nil {
		logger = log.Default()
	}
	return &LogListener{logger: logger}
}

func (l *LogListener) OnStall(_ *Detector, ev *StallEvent) {
	l.logger.Printf("[watchdog] %s", ev)
}
