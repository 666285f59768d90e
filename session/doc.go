// Package session houses the conversation state store: the Store contract
// plus an in-memory and a SQLite implementation.
//
// Every store offers per-thread exclusivity through Lock and optimistic
// versioning on Save, so a thread is only ever overwritten by the run that
// owns it. Checkpoints are atomic per save: readers observe either the
// previous or the new state, never a partial write.
package session
