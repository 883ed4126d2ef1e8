// Package stream drives one assistant response per chat: it sends the
// user message, accumulates streamed tokens, captures the retrieved
// source list, and finalizes the optimistic placeholder in the
// conversation store.
//
// A session exists from Send until message_complete or a chat-scoped
// error. At most one session is live per chat id; a new Send replaces
// a stale one. Every inbound event is filtered by chat id, so two
// chats streaming concurrently on the same connection never share a
// buffer.
//
// Abandoning a session only stops local consumption. The protocol has
// no stop-generation command, so the server keeps producing tokens,
// which are dropped here once no session matches.
package stream
