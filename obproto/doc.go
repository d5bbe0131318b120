// Package obproto holds the control-plane vocabulary shared between the
// application and box instances: locations, deployable statements, and the
// asynchronous messages instances emit.
//
// Messages travel as JSON envelopes (see Encode and Decode) carrying a type
// tag, an optional request correlation id and the payload.
package obproto
