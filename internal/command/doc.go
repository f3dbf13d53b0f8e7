// Package command issues door triggers to the controller over HTTP.
//
// Commands travel on a side-channel separate from the streaming
// connection: a trigger is a plain POST, and the resulting door movement
// (if any) is observed later as status updates on the stream. The
// dispatcher therefore never mutates door state itself and never waits
// for the door to move.
//
//	Trigger(ctx, 1)
//	   |
//	   v
//	POST /api/trigger/1  --200-->  Ack          (movement arrives via stream)
//	                     --4xx-->  ErrRejected
//	                     --x--->   ErrUnreachable
//
// One call, one request: the dispatcher never retries. Door ids outside
// the configured set are refused locally without touching the network.
//
// Credentials are optional bearer tokens. When the token is a JWT its
// expiry is checked before each request so a stale credential fails fast
// instead of producing a confusing 401.
package command
