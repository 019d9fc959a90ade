// Package slotengine implements the tournament core inside the
// story-tournament context.
//
// The module owns the season's slot strip: clip intake and moderation,
// derived slot state (waiting_for_clips/voting/locked), voting-window
// timers, winner assignment and rollback, and the reconciliation sweep
// that repairs drifted state. Slot status is never stored as truth on its
// own; every transition is re-derived from the live eligible-clip count
// inside the store transaction that changes the clips. Business rules live
// in the domain and application layers; infrastructure stays behind ports
// and adapters.
package slotengine
