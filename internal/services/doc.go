// Package services implements the business logic layer of the dashboard.
// It sits between the HTTP handlers and the analytics packages so handlers
// never touch datasets, models or calendars directly.
//
// # Available Services
//
//	- AnalyticsService: dataset cache, summaries, insights, anomaly
//	  detection, forecasts, model comparison, ranking and error diagnosis
//	- HealthService: liveness, readiness and runtime statistics
//
// Every operation takes a context.Context and logs through the injected
// slog logger, so the trace id set by the request middleware appears on
// each line.
//
// # Error Handling
//
// Services return the domain errors of internal/errors unchanged. Handlers
// turn them into RFC 7807 responses:
//
//	- ErrNoData for selections without rows
//	- validation errors for unknown items, strategies or windows
//	- ErrInsufficientHistory and ErrModelFit from the forecasting path
//
// AnalyticsService.Rank has the signature of operations.Runner, so the same
// sweep serves synchronous requests and queued ranking jobs.
package services
