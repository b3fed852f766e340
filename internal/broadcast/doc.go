// Package broadcast fans rotation events out to connected viewers.
//
// Every viewer owns a bounded mailbox of encoded messages. Publishing never
// waits for a viewer: a full mailbox drops its oldest message, and the
// periodic state heartbeat lets any viewer that missed messages catch up.
package broadcast
