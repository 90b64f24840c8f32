/*
Package proxy provides a client for the plugin proxy's WebSocket protocol that multiplexes request/response pairs over a single connection.

Each request is written as one JSON message. Before writing, the client assigns a correlation id if the message has none and registers a pending entry for it. Inbound frames are decoded into messages and dispatched in order: first to every general listener registered with OnMessage, then, if the id matches a pending entry, to the waiting Send call. The pending entry is removed on delivery, so a response is delivered to its waiter at most once.

A Send can be bounded by a response timeout. When it elapses, only that waiter is unregistered; the write already made and other pending requests are unaffected, and a late response for the id is delivered to general listeners only.

Malformed frames are logged and dropped. The client never reconnects: when the connection closes, every pending Send fails with ErrTransportClosed and Done is closed.
*/
package proxy
