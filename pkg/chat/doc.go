// Package chat holds the client-side conversation lifecycle of the chatbot.
//
// A Store owns the ordered conversation and the request status. Submit appends a
// user message and hands the full conversation to a Transport; fragments streamed
// back by the transport grow a single assistant message until the request completes
// or fails. The Composer owns the draft input and applies the submission gate.
//
// Rendering is left to the ui packages, which only read Snapshots.
package chat
