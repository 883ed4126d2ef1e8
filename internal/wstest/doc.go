// Package wstest runs an in-process backend speaking the realtime
// protocol, used by integration tests for the connection manager, the
// room subscriber, and the streaming controller.
//
// The server acks joins and leaves, answers pings, and replies to each
// send_message with a scripted stream of sources, tokens, and a
// completion event. Connections can be dropped on demand to exercise
// the reconnect path.
package wstest
