package cache

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/industryvis/historian/internal/models"
)

// tagSep joins the sorted tag list into a single comparable string.
// It cannot occur in a tag name.
const tagSep = "\x1f"

// Key is the fingerprint identity of a query plus its processing
// configuration. Two logically identical requests (same table, time
// range, tag set regardless of order, and processing options) compare
// equal. The zero processing hash means "no processing config".
type Key struct {
	Table          string
	StartTime      string
	EndTime        string
	Tags           string // sorted tag names joined by tagSep
	ProcessingHash uint64
}

// NewKey builds a cache key. The tag list is copied and sorted so the
// key is order-independent; nil and empty tag lists are equivalent.
func NewKey(table, startTime, endTime string, tags []string, cfg *models.ProcessingConfig) Key {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)

	return Key{
		Table:          table,
		StartTime:      startTime,
		EndTime:        endTime,
		Tags:           strings.Join(sorted, tagSep),
		ProcessingHash: hashProcessingConfig(cfg),
	}
}

// TagList returns the sorted tag names encoded in the key.
func (k Key) TagList() []string {
	if k.Tags == "" {
		return nil
	}
	return strings.Split(k.Tags, tagSep)
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%s..%s] tags=%d proc=%x",
		k.Table, k.StartTime, k.EndTime, len(k.TagList()), k.ProcessingHash)
}

// hashProcessingConfig computes a deterministic 64-bit digest over every
// processing field that affects pipeline output. A nil config hashes to
// zero. Two configs differing in any single sub-field produce distinct
// digests, so distinct processing options never share a cache entry.
func hashProcessingConfig(cfg *models.ProcessingConfig) uint64 {
	if cfg == nil {
		return 0
	}

	d := xxhash.New()
	writeBool := func(b bool) {
		if b {
			d.Write([]byte{1})
		} else {
			d.Write([]byte{0})
		}
	}
	writeString := func(s string) {
		d.WriteString(s)
		d.Write([]byte{0xff})
	}
	writeInt := func(n int) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		d.Write(buf[:])
	}

	writeBool(cfg.OutlierRemoval.Enabled)
	writeString(cfg.OutlierRemoval.Method)
	writeBool(cfg.Resample.Enabled)
	writeInt(cfg.Resample.IntervalSeconds)
	writeString(cfg.Resample.Method)
	writeBool(cfg.Smoothing.Enabled)
	writeString(cfg.Smoothing.Method)
	writeInt(cfg.Smoothing.Window)

	return d.Sum64()
}
