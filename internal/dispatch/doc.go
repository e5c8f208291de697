// Package dispatch is the single entry point for answering a question in
// a session. It validates the session ID, resolves the conversation
// thread, runs the conversation graph, and shapes the result for callers.
package dispatch
