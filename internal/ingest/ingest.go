package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
)

// FileResult is the per-file load outcome.
type FileResult struct {
	Path      string
	Hash      string
	Documents []entity.Document
	Err       error
}

// DirStats summarizes a directory load.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Loaded  uint32
	Pages   uint32
	Failed  uint32
}

// ContentHash is the hex SHA-256 of a file's bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func documentID(hash string, page int) string {
	if len(hash) > 16 {
		hash = hash[:16]
	}
	return hash + "-p" + strconv.Itoa(page+1)
}
