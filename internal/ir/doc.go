// Package ir defines the in-memory model of the fact store.
//
// A Subject identifies an entity (a page, a property, a concept or a
// subobject of one of those). A SemanticData value is the assertion set
// for exactly one Subject: an unordered collection of (Property, DataItem)
// pairs. Each DataItem belongs to a value Family, and every Family is
// persisted in its own property table.
//
// Concepts are subjects in NSConcept whose "_CONC" value carries a saved
// query description. Their materialised results are summarised by a
// CacheRecord.
//
// Values are compared through canonical keys (NFC-normalised, family
// prefixed strings) so that set comparison and fingerprint hashing are
// independent of insertion order and of Unicode composition.
package ir
