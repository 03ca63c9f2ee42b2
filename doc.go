// Package mcp implements a Model Context Protocol (MCP) server built around a
// session-scoped message broker.
//
// Clients open a long-lived event stream per session, either as Server-Sent
// Events over HTTP or as a line-oriented stdio channel, and submit JSON-RPC
// requests out-of-band via HTTP POST or stdin. Responses and server-initiated
// notifications are delivered asynchronously on the session's stream.
//
// The package is organized around three cooperating pieces:
//
//   - SessionStore tracks per-client sessions through their lifecycle
//     (pending, activated, removed) and gates request processing on
//     activation state.
//   - Broker owns a bounded ingest queue and a table of per-session
//     mailboxes. A single pipeline worker drains the queue in FIFO order,
//     dispatches each message through the ProtocolAdapter, and publishes
//     replies to the originating session's mailbox. Mailboxes are created
//     lazily and reclaimed after an idle period with no stream subscribers.
//   - ProtocolAdapter decodes raw JSON-RPC payloads into a closed set of
//     typed MCP requests, routes each to the matching capability service
//     (tools, resources, prompts) or session transition, and enforces the
//     JSON-RPC error envelope on every failure path.
//
// Capability services are provided by implementing the ToolServer,
// ResourceServer, and PromptServer interfaces; see the servers/demo package
// for a reference implementation. The SSEServer and StdIO types bind the
// broker to the two supported transports.
package mcp
