package types

// Version is the canonical module version, reported by the CLI's version
// command and embedded in job journal records so a journal written by one
// build can be recognized by a later one.
const Version = "0.1.0"
