// Package facematch is the face-matching engine: it turns raw face-detector output into comparable
// encodings and decides whether an ordered gallery of stored encodings contains the same person.
//
// Everything here is pure computation. Callers own detection, persistence and what to do with a
// MatchResult.
package facematch
