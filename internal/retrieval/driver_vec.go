//go:build sqlite_vec && cgo

package retrieval

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// cgo driver with the sqlite-vec extension auto-loaded, for large corpora
// where in-Go ranking is too slow.
const sqliteDriver = "sqlite3"

func init() {
	vec.Auto()
}
