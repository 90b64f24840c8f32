/*
Package message defines the envelope exchanged with the plugin proxy over a WebSocket connection.

Every frame written by the client holds exactly one JSON message object. Frames read from the proxy hold either one message object or an ordered list of them; DecodeFrame normalizes both shapes into a slice.

A message has the following fields:

	id       correlation key, generated by the client when absent, echoed back on the response
	action   operation name, e.g. "plugin/authenticate"
	status   absent, "success" or "failed"
	payload  arbitrary JSON value
	topic    optional topic the message was routed through

A response reuses the id of its request. A response with status "failed" carries the remote error text in payload.message.
*/
package message
