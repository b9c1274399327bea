// Package logging builds the slog loggers used across menuvision and defines
// the standardized structured field keys shared by the daemon, the pipeline,
// and the collaborator clients.
package logging
