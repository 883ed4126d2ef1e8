// Package store holds the client-side conversation state: chats and,
// per chat, an ordered message list.
//
// Two message lifecycles coexist. Optimistic messages are inserted
// locally with pending ids before any server acknowledgment; confirmed
// messages carry server-assigned numeric ids loaded from the history
// endpoint. The streaming controller is the only writer of an
// assistant placeholder until it finalizes; a finalized message is
// immutable afterwards.
//
// Nothing here persists across restarts. History is refetched from the
// backend on chat open.
package store
