// Package toolexecutor maps tool names to callable capabilities.
//
// Tools are registered once at startup with a declared parameter list;
// inputs are validated against a JSON Schema compiled at registration
// time. Execution failures, including requests for tools that were
// never registered, are reported as failure-status results so the
// model can observe them and self-correct. They never surface as Go
// errors to the agent loop.
package toolexecutor
