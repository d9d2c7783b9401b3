package log

// MultiLogger fans each event out to a fixed set of sinks, in the order
// they were given.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger returns a MultiLogger over loggers. Nil entries and
// NoopLogger values are dropped and nested MultiLoggers are flattened.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		switch l := l.(type) {
		case nil, NoopLogger, *NoopLogger:
		case *MultiLogger:
			m.sinks = append(m.sinks, l.sinks...)
		default:
			m.sinks = append(m.sinks, l)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiLogger) Len() int {
	return len(m.sinks)
}

func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
