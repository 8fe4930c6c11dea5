// Package domain models the incident and news records produced by the ingest
// service, plus the pure text analysis used to derive them.
//
// # Sources
//
// Two producers feed the service independently:
//
//	News listing: the RKB毎日放送 "latest" listing on newsdig.tbs.co.jp,
//	pages 1..3. Each listing row becomes an [ArticleCandidate]; the newest
//	candidates are revisited for their full body and promoted to a
//	[NormalizedRecord].
//
//	Disaster-alert mail: automated notices sent by the Fukuoka City fire
//	bureau (fukushosaigai@m119.city.fukuoka.lg.jp). Each unseen notice becomes
//	a [DisasterReport].
//
// # Alert Mail Conventions
//
// The first line of a notice names the dispatch, e.g.
//
//	"火災出動 中央区天神2丁目3番付近"
//
// Disaster type is the first keyword from a fixed priority table found
// anywhere in the body: 救急 (emergency), 火災 (fire), 救助 (rescue),
// 災害 (disaster), 警戒 (alert). A body matching none is [DisasterUnknown].
// Priority matters: a notice mentioning both 救急 and 火災 is an emergency.
//
// Addresses follow the municipal pattern
//
//	<ward>区 [space] <town> [N丁目 [N番]] [付近]
//
// where 丁目 is the block number, 番 the lot number and 付近 means
// "vicinity of". Extraction is best-effort; a body without a match yields
// the sentinel [AddressUnknown] ("住所不明").
//
// # Recency Window
//
// Listing items are kept when published at or after the start of the
// previous calendar day in the source time zone (Asia/Tokyo by default).
// Run at 09:00 on the 15th, the window opens at 00:00 on the 14th.
//
// # ID Generation
//
// Record IDs are truncated SHA-256 digests of their identifying fields. They
// are stable message keys for the sinks, not a deduplication mechanism; the
// service stores whatever each run produces. See [generateID].
package domain
