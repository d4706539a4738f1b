// Package identity pairs the terminal with the remote system and keeps the
// active identity recoverable.
//
// Redundancy policy: every identity-affecting write goes to the Local Durable
// Store and to an independent Backup channel. At boot both are consulted;
// the store wins when it has an identity, the backup is used only when the
// store is empty, and whichever side is missing the identity is repaired.
package identity
