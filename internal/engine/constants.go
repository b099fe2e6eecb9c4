package engine

// compactSuffix separates the database path from the unique part of a
// compaction temp file name.
const compactSuffix = ".compact-"
