package core

import "context"

// Store is the knowledge store consumed by the dispatch engine.
//
// None of the operations return errors: storage failures are retried inside
// the store and, once retries are exhausted, surface as the operation's zero
// result (empty slice, false, zero). Rule handlers deliberately cannot tell
// "nothing found" from "storage unavailable".
type Store interface {
	RecordSeen(ctx context.Context, nick, channel, message string)
	LookupSeen(ctx context.Context, pattern string) []SeenRecord

	SetFactoid(ctx context.Context, author, item string, are bool, value string, replace bool) bool
	ForgetFactoid(ctx context.Context, item, author string) bool
	GetFactoid(ctx context.Context, item string) []Factoid
	FactoidInfo(ctx context.Context, item string) []HistoryEntry

	EnqueueTell(ctx context.Context, author, recipient, message string, companionRelevant bool) bool
	DrainTells(ctx context.Context, recipient string) []Tell

	BumpReference(ctx context.Context, namespace, item string) (Reference, bool)
	SetTitle(ctx context.Context, namespace, item, title string)

	// Mood is the positive marker's reference count minus the negative
	// marker's, absent counters read as zero.
	Mood(ctx context.Context, positiveMarker, negativeMarker string) int64
}
