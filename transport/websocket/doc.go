// Package websocket streams live runs to browsers.
//
// A Hub keeps one set of clients per session. The game service pushes every
// drawn frame through BroadcastState and run events through BroadcastEvent;
// both enqueue without blocking, and a client whose buffer fills up is
// dropped rather than slowing the run down.
//
// Message Protocol:
//
// Each message is a JSON object {session_id, event, state?, data?}. Frames
// carry event "state" and the full engine state, including the animation
// fields a renderer needs. Several queued messages may share one WebSocket
// frame, separated by newlines. Messages sent by clients are ignored.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"), nil)
//	})
package websocket
