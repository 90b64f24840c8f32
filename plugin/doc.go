/*
Package plugin runs a Plugin against the plugin proxy: it connects, authenticates, optionally subscribes to the plugin topic, and relays inbound messages to the plugin.

A Runner moves through these states:

	Idle -> Connecting -> Authenticating -> (Subscribing) -> Running -> Stopping -> Terminated

Once connected, the runner calls BeforeStart, authenticates, subscribes if AUTO_SUBSCRIPTION_ON_START is set, starts relaying inbound messages and calls AfterStart. When the connection closes it calls BeforeStop and Run returns. Transport errors and failures of the start sequence are passed to OnError; they do not stop the runner. A failed start leaves the connection open but no message is ever delivered.

All hooks are called one at a time, in order, from a single goroutine. Inbound messages are delivered to HandleMessage in arrival order, and only while the session is authenticated. A hook may use its Capabilities to send requests and wait for their responses.

The configuration is validated before connecting. An invalid configuration is reported to OnError and returned from Run as config.ErrConfig; the caller decides how to exit.
*/
package plugin
