// Package audit buffers security events and hands them to a [Sink].
//
//   - [Sink] is implemented by [ChannelSink], [JSONWriterSink], [LogrusSink]
//     and [NoOpSink].
//   - [Dispatcher] relays events from one goroutine and counts drops.
//
// The package decides nothing about which events exist; the root service
// does. It must not import authcore or any sibling internal package.
package audit
