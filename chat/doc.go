// Package chat holds the live chat log: a bounded, ordered ring of messages
// shared by every connected viewer.
//
// The log keeps at most Capacity messages; appending beyond that evicts the
// oldest entry first. Message ids are unix-millisecond timestamps with a
// monotonic guard so two messages created in the same millisecond still get
// distinct, ordered ids.
//
// Two views exist: the audit view (Messages) carries the sender address for
// moderation, the public view (PublicMessages, Message.Public) strips it.
// Ban enforcement itself lives with the station ban list; callers check it
// before appending viewer messages.
package chat
