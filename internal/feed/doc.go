// Package feed stores the bounded per-antenna feeds: most-recent-first
// sequences of note ids, capped at the owner's feed limit. Appends and trims
// for one note are committed as a single atomic batch, and no other code
// path mutates feed contents.
package feed
