// Package websocket pushes solver progress to browser and tool clients.
//
// A central Hub owns every connection. Clients subscribe to one run by
// connecting to /ws?run=<id>, or to every run with /ws?run=*. The solver
// service publishes through Hub.PublishProgress and the hub fans each event
// out to the run's subscribers.
//
// Message Protocol:
//
// Outgoing messages are JSON:
//
//	{"run_id": "…", "event": "solve_started|solve_progress|solve_finished", "data": {…}}
//
// Incoming messages are read only to detect disconnects.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//
//	svc := service.NewSolverService(levels, runs,
//		service.WithProgress(hub.PublishProgress))
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("run"))
//	})
package websocket
