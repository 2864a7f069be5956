package config

// NewLoggerForTest creates a Logger config with preset values for testing
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewCoursesForTest creates a Courses config with a preset path for testing
func NewCoursesForTest(path string) *Courses {
	return &Courses{path: path}
}

// NewSentryForTest creates a Sentry config with preset values for testing
func NewSentryForTest(dsn, env string) *Sentry {
	return &Sentry{dsn: dsn, env: env}
}
