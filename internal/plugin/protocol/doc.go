// Package protocol defines the typed messages exchanged between a host
// application and its plugins.
//
// Events travel host to plugin; responses travel plugin to host. Both sides
// of the protocol are closed sets of variants carrying a self-describing
// "type" discriminator, so a message can cross the host/interpreter boundary
// as plain data regardless of the backend's native representation.
//
// Encoding then decoding a message reproduces a value with the same
// discriminator and fields. A missing or unrecognized discriminator is a
// decode error, never a default variant: host and plugin fail loudly on
// protocol drift instead of silently diverging.
package protocol
