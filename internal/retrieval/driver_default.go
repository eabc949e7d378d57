//go:build !sqlite_vec

package retrieval

import (
	_ "modernc.org/sqlite"
)

// Pure-Go driver; similarity ranking happens in Go over stored embeddings.
const sqliteDriver = "sqlite"
