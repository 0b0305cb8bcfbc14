// Package feed reads IMS Enterprise XML feeds in bounded memory.
//
// The feed is consumed one line at a time into a Buffer. After every line the
// Scanner asks the buffer, for each watched element kind, whether a complete
// `<kind ...>...</kind>` span now exists. The full-buffer pattern is only tried
// when the newest line carries that kind's closing tag, so per-line cost stays
// proportional to the number of watched kinds rather than to the buffer size.
// Every extracted span is handed to a Handler and then discarded from the buffer,
// which keeps memory proportional to the largest single element.
//
// The package does not parse XML. Fields are pulled out of an element with
// case-insensitive, non-greedy patterns by a PatternExtractor, behind the
// Extractor interface so a structural parser can replace it later.
//
// Elements must not nest or interleave at the top level. An element still open
// when the input ends is dropped and reported in ScanStats.DroppedBytes.
package feed
