// Package conversation defines the append-only log of chat turns kept per
// (user, business) pair.
//
// Turns are never updated or deleted. Each carries an optional embedding;
// a nil Embedding means the encode step failed, was skipped, or returned no
// vector. Store implementations live in internal/vectorstore.
//
// Reads come in two orders:
//
//   - Recent returns the newest N turns, oldest first, for rebuilding a thread.
//   - Similar returns turns with an embedding, nearest first by cosine distance.
package conversation
