// Package voteledger implements the vote ledger inside the
// story-tournament context.
//
// The module owns the authoritative record of every ballot: casting with
// weight, revoking, recounted clip and slot tallies, and vote event
// production through an outbox-backed relay. A vote is a row, never a
// counter; standings are always recomputed from the rows, and the unique
// (voter_key, clip_id) constraint at the store is the only duplicate
// authority. Business rules live in application/domain layers while
// infrastructure stays behind ports and adapters.
package voteledger
