// Package agent contains the orchestration core: the loop that
// alternates between querying a language model and executing the tools
// it requests, and the runner that owns a session run end-to-end.
//
// The loop is a small state machine. It asks the provider for the next
// assistant turn, executes any requested tool calls, feeds the results
// back, and repeats until the model answers with plain text, the turn
// limit is hit, the provider fails permanently, or the run is
// cancelled. Tool failures are not loop failures; they are reported
// back into the conversation so the model can adapt.
package agent
