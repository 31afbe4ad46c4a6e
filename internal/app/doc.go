// Package app wires the analytics service together and manages its
// lifecycle.
//
// New builds every component from a loaded configuration: paths, logging,
// OpenTelemetry providers, the analytics service, the ranking job queue,
// the WebSocket hub and the chi router. Start runs the HTTP server and a
// startup check that loads the shipment dataset and verifies the reports
// directory. Stop drains the server, the job queue and the hub, then flushes
// telemetry.
//
//	a, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := a.Run(); err != nil {
//	    log.Fatal(err)
//	}
package app
