// Package rotation holds the single authoritative record of what is featured
// right now, which satellites orbit it, and what viewers did recently.
//
// All access goes through State: View and Snapshot take the read side of the
// gate, Apply takes the write side. A *Record handed to a callback must not be
// retained after the callback returns.
package rotation
