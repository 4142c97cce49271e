// Package api serves the controller's local HTTP status surface.
//
// Routes:
//
//	GET /api/v1/health   200 when the bus session is up, 503 otherwise
//	GET /api/v1/status   JSON snapshot of doors, actuators, and connectivity
//	GET /api/v1/journal  recent journal entries (when a journal is configured)
//	GET /metrics         Prometheus exposition
//
// The server is read-only. Door commands only arrive over the bus.
//
//	tracker := api.NewTracker(cfg.Device.ID, version)
//	server, err := api.New(api.Deps{Config: cfg.API, Logger: log, Tracker: tracker})
//	if err := server.Start(ctx); err != nil {
//	    return err
//	}
//	defer server.Close()
package api
