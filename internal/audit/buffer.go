package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/snappy"
)

// bufferedEntry is one audit submission the durable buffer holds,
// captured before replay re-derives its chain position.
type bufferedEntry struct {
	Entry Entry
	At    time.Time
}

// DurableBuffer is the local fallback store for audit writes that failed
// (spec.md §4.8: "failures to write an audit record are themselves
// logged to a local durable buffer for later insertion"). Each entry is
// JSON-marshalled then snappy-compressed and appended to path as a
// length-prefixed record. Load stops at a truncated final record and
// returns the entries before it, so a crash mid-write loses only the
// in-progress entry as long as no later Save has appended after it.
type DurableBuffer struct {
	mu   sync.Mutex
	path string
}

func NewDurableBuffer(path string) *DurableBuffer {
	return &DurableBuffer{path: path}
}

func (b *DurableBuffer) Save(e bufferedEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal buffered entry: %w", err)
	}
	compressed := snappy.Encode(nil, raw)

	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open durable buffer: %w", err)
	}
	defer f.Close()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("audit: write buffered entry length: %w", err)
	}
	if _, err := f.Write(compressed); err != nil {
		return fmt.Errorf("audit: write buffered entry: %w", err)
	}
	return nil
}

// Load reads every entry currently in the buffer without removing them;
// callers that successfully replay a subset call Replace with what's
// left.
func (b *DurableBuffer) Load() ([]bufferedEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open durable buffer: %w", err)
	}
	defer f.Close()

	var out []bufferedEntry
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("audit: read buffered entry length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		compressed := make([]byte, n)
		if _, err := io.ReadFull(f, compressed); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("audit: read buffered entry: %w", err)
		}
		raw, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("audit: decompress buffered entry: %w", err)
		}
		var e bufferedEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("audit: unmarshal buffered entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Replace atomically rewrites the buffer file to hold exactly entries —
// used after a partial replay to drop what succeeded and keep what
// didn't.
func (b *DurableBuffer) Replace(entries []bufferedEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(entries) == 0 {
		if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("audit: remove drained buffer: %w", err)
		}
		return nil
	}

	tmp := b.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open replacement buffer: %w", err)
	}
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return fmt.Errorf("audit: marshal buffered entry: %w", err)
		}
		compressed := snappy.Encode(nil, raw)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			f.Close()
			return fmt.Errorf("audit: write replacement entry length: %w", err)
		}
		if _, err := f.Write(compressed); err != nil {
			f.Close()
			return fmt.Errorf("audit: write replacement entry: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audit: close replacement buffer: %w", err)
	}
	return os.Rename(tmp, b.path)
}
