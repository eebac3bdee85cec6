// Package state keeps per-user conversation sessions for Telegram bots: the
// current FSM step plus a typed payload owned by that user. Sessions expire
// after a configurable idle period. It is domain-agnostic.
package state
