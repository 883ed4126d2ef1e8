// Package wire defines the realtime protocol spoken with the DocChat
// backend over a single WebSocket connection.
//
// Every frame is a JSON envelope carrying an event name and a payload:
//
//	{"event": "message_token", "data": {"chat_id": 10, "token": "Hel"}}
//
// Event Names (Client → Server):
//   - join_project: Enter a project room
//   - leave_project: Leave a project room
//   - send_message: Start a streamed assistant response
//   - ping: Keep-alive and latency probe
//
// Event Names (Server → Client):
//   - connection_status: Post-handshake status report
//   - project_joined / project_left: Room membership acks
//   - message_received: Send acknowledgment
//   - message_token: One incremental response fragment
//   - message_sources: Retrieved source documents for the response
//   - message_complete: Response finished, carries generation metadata
//   - document_status: Document processing progress broadcast
//   - project_update: Project-level cache invalidation broadcast
//   - error: Connection or chat scoped failure
//   - pong: Ping reply with server timestamp
package wire
