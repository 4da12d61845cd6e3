// Package webchat serves the browser chat UI.
//
// Every browser tab owns a session: a chat.Store living on the server. The page
// is rendered from the session snapshot, submissions go through POST /submit, and
// each snapshot change is rendered to a Frame, published on the update bus and
// pushed to the session's websockets.
//
// Routes:
//   - GET /            create a session or render an existing one
//   - POST /submit     submit the draft of a session
//   - GET /ws          stream frames of a session
//   - GET /static/     stylesheet and script
//   - POST /api/chat   backend chat endpoint (UI message stream)
//   - /api             placeholder REST route
package webchat
