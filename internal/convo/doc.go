// Package convo runs the conversation turn for the assistant.
//
// A turn moves through a small fixed graph: the router model decides
// whether the question needs the knowledge base; if it requests the
// retrieval tool, the graph executes the search, feeds the results back
// as a tool message, and generates a grounded answer; otherwise the
// router's own reply is the answer. Per-thread history lives in an
// in-memory History keyed by thread ID.
package convo
