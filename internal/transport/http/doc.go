// Package http implements the HTTP handlers of the shipment analytics
// dashboard. Handlers stay thin: they parse and validate query parameters or
// JSON bodies, call the analytics service or the ranking job queue, and format
// the response.
//
// # Responses
//
// Successful JSON responses share one envelope:
//
//	{"status": "success", "data": ..., "count": N}
//
// Errors are rendered by errors.ErrorHandler as RFC 7807 problem details,
// for example:
//
//	{
//	    "type": "/errors/series/insufficient-history",
//	    "title": "Insufficient History",
//	    "status": 422,
//	    "detail": "10 usable rows, need more than 14",
//	    "instance": "/api/forecast",
//	    "trace_id": "..."
//	}
//
// # Routes
//
//	GET    /api/centers, /api/items, /api/strategies
//	GET    /api/summary, /api/summary/download?format=csv|xlsx
//	GET    /api/comparison, /api/trend, /api/insights, /api/anomalies
//	GET    /api/forecast, /api/models/compare
//	GET    /api/ranking, /api/errors/diagnosis
//	POST   /api/ranking/jobs
//	GET    /api/ranking/jobs, /api/ranking/jobs/{id}
//	DELETE /api/ranking/jobs/{id}
//	GET    /api/health, /api/health/ready, /api/health/live, /api/version, /api/stats
//	GET    /ws
//	GET    /metrics
//
// # WebSocket
//
// Ranking job status and progress are pushed to every client connected to
// /ws as "ranking:status" and "ranking:progress" messages.
package http
