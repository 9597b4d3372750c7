// ABOUTME: Sendspin Protocol package
// ABOUTME: Wire message types, envelope, and binary audio-chunk framing
// Package protocol defines the Sendspin wire protocol: the JSON message
// envelope exchanged over the text side of the duplex channel, and the
// binary audio-chunk framing exchanged over the binary side.
//
// The protocol itself does not open connections or own any session state;
// it only describes what goes on the wire.
package protocol
