// Package api provides the local HTTP status API and WebSocket event feed
// for robotlink.
//
// It exposes the session snapshot, the durable action queue and component
// health to an operator or to the task executor running beside the robot.
//
// # Endpoints
//
//	GET  /api/v1/health                  component health (503 when degraded)
//	GET  /api/v1/session                 session.Snapshot as JSON
//	GET  /api/v1/actions?status=&limit=  queued actions plus totals
//	GET  /api/v1/actions/{id}            one action
//	POST /api/v1/actions/{id}/complete   mark a pending action done
//	GET  /api/v1/ws                      WebSocket event feed
//
// # WebSocket Channels
//
// Clients send {"type":"subscribe","payload":{"channels":[...]}} with any of
// session.phase, action.dispatched, message.skipped, action.completed.
// The Hub implements session.Notifier, so the coordinator broadcasts straight
// into it.
//
// # Lifecycle
//
//	hub := api.NewHub(cfg.WebSocket, log)
//	go hub.Run(ctx)
//	server, err := api.New(api.Deps{..., Hub: hub})
//	if err := server.Start(ctx); err != nil { ... }
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
