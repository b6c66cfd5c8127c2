package application

import "log/slog"

// ModuleName is the value of the "module" attribute on every log line.
const ModuleName = "polling/live-poll"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LayerLogger binds the module and layer attributes once per call path.
func LayerLogger(logger *slog.Logger, layer string) *slog.Logger {
	return ResolveLogger(logger).With("module", ModuleName, "layer", layer)
}
