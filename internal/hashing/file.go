package hashing

import (
	"bytes"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/store/model"
)

// mmapThreshold is the file size above which HashFile memory-maps the
// source instead of going through a buffered read, avoiding a full
// userspace copy for large uploads.
const mmapThreshold = 8 * 1024 * 1024

// HashFile hashes the file at path the same way Hash does, memory-mapping
// it when it's large enough for that to matter (spec.md §4.3: "streams
// the input ... in a single pass").
func (h *Hasher) HashFile(path string, primaryAlgo, secondaryAlgo model.DigestAlgo) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, apperr.Internal("open document for hashing", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, apperr.Internal("stat document for hashing", err)
	}
	if info.Size() < mmapThreshold {
		return h.Hash(f, primaryAlgo, secondaryAlgo)
	}

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// mmap can fail on some filesystems/platforms (e.g. network
		// mounts); degrade to a buffered read rather than fail ingest.
		if _, seekErr := f.Seek(0, 0); seekErr != nil {
			return Result{}, apperr.Internal("seek document for hashing", seekErr)
		}
		return h.Hash(f, primaryAlgo, secondaryAlgo)
	}
	defer mapped.Unmap()

	result, err := h.Hash(bytes.NewReader(mapped), primaryAlgo, secondaryAlgo)
	if err != nil {
		return Result{}, fmt.Errorf("hashing: mmap hash of %s: %w", path, err)
	}
	return result, nil
}
