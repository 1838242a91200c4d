package anno

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gofrs/flock"

	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/qerr"
)

// DefaultByteBudget is the default size of the in-memory write buffer
// before it is flushed into the on-disk tier.
const DefaultByteBudget = 32 << 20 // 32 MiB

// blockSize is the number of sorted entries grouped into one on-disk block
// for the LRU block cache.
const blockSize = 256

// tombstone marks a deleted entry in the memory tier; it is distinguished
// from a real (possibly empty) value by a dedicated type rather than an
// empty byte slice, since an annotation value can legitimately be empty.
type entry struct {
	value     string
	tombstone bool
}

// DiskStore is the on-disk annotation store backend: a memory tier backed
// by an immutable radix tree, write-through to a sorted on-disk tier once
// the memory tier exceeds its byte budget. It keys two independent sorted
// tables, mirroring the by-container and by-anno-qname layouts: the first
// enables range scans restricted to one item, the second range scans
// restricted to one qualified name in value-lexicographic order.
//
// DiskStore holds an exclusive [flock.Flock] on its directory for the
// lifetime of the store, preventing two processes from mutating the same
// on-disk tables concurrently.
type DiskStore[T comparable] struct {
	mu sync.RWMutex

	dir        string
	lock       *flock.Flock
	byteBudget int64
	bufBytes   int64

	keys *KeyTable

	memByContainer *iradix.Tree[entry]
	memByQName     *iradix.Tree[entry]

	diskByContainer []diskEntry // sorted, flushed snapshot
	diskByQName     []diskEntry

	blockCache *lru.Cache[int, []diskEntry]

	encodeItem func(T) []byte
	decodeItem func([]byte) T
}

type diskEntry struct {
	key   []byte
	value string
}

// DiskStoreOption configures a [DiskStore] at construction.
type DiskStoreOption func(*diskStoreConfig)

type diskStoreConfig struct {
	byteBudget int64
	cacheSize  int
}

// WithByteBudget overrides [DefaultByteBudget].
func WithByteBudget(n int64) DiskStoreOption {
	return func(c *diskStoreConfig) { c.byteBudget = n }
}

// WithBlockCacheSize overrides the number of on-disk blocks kept cached in
// memory; the default is 64 blocks.
func WithBlockCacheSize(n int) DiskStoreOption {
	return func(c *diskStoreConfig) { c.cacheSize = n }
}

// OpenDiskStore opens (creating if absent) an on-disk annotation store
// rooted at dir, acquiring an exclusive file lock for the store's
// lifetime. encodeItem/decodeItem convert the subject type to and from
// its fixed-width byte representation used as the by-container key
// prefix.
func OpenDiskStore[T comparable](dir string, encodeItem func(T) []byte, decodeItem func([]byte) T, opts ...DiskStoreOption) (*DiskStore[T], error) {
	cfg := diskStoreConfig{byteBudget: DefaultByteBudget, cacheSize: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, qerr.New(qerr.KindIo, "create annotation store directory").
			WithDetail(qerr.DetailKeyPath, dir).WithCause(err).Build()
	}

	lockFile := flock.New(filepath.Join(dir, ".lock"))
	ok, err := lockFile.TryLock()
	if err != nil {
		return nil, qerr.New(qerr.KindIo, "lock annotation store directory").
			WithDetail(qerr.DetailKeyPath, dir).WithCause(err).Build()
	}
	if !ok {
		return nil, qerr.New(qerr.KindIo, "annotation store directory already locked").
			WithDetail(qerr.DetailKeyPath, dir).Build()
	}

	cache, err := lru.New[int, []diskEntry](cfg.cacheSize)
	if err != nil {
		_ = lockFile.Unlock()
		return nil, qerr.New(qerr.KindIo, "create block cache").WithCause(err).Build()
	}

	s := &DiskStore[T]{
		dir:            dir,
		lock:           lockFile,
		byteBudget:     cfg.byteBudget,
		keys:           NewKeyTable(),
		memByContainer: iradix.New[entry](),
		memByQName:     iradix.New[entry](),
		blockCache:     cache,
		encodeItem:     encodeItem,
		decodeItem:     decodeItem,
	}

	if err := s.loadDiskTables(); err != nil {
		_ = lockFile.Unlock()
		return nil, err
	}
	return s, nil
}

// Close releases the directory lock. The store must not be used afterward.
func (s *DiskStore[T]) Close() error {
	return s.lock.Unlock()
}

func containerKey(itemBytes []byte, key KeyID) []byte {
	buf := make([]byte, len(itemBytes)+4)
	copy(buf, itemBytes)
	binary.BigEndian.PutUint32(buf[len(itemBytes):], uint32(key))
	return buf
}

func qnameKey(key KeyID, value string, itemBytes []byte) []byte {
	buf := make([]byte, 4+len(value)+1+len(itemBytes))
	binary.BigEndian.PutUint32(buf, uint32(key))
	n := copy(buf[4:], value)
	buf[4+n] = 0x00
	copy(buf[4+n+1:], itemBytes)
	return buf
}

// Insert records value under key for item in the memory tier, flushing to
// the on-disk tier if the byte budget is exceeded.
func (s *DiskStore[T]) Insert(ctx context.Context, item T, key Key, value string) error {
	if ctx == nil {
		panic("anno.DiskStore.Insert: nil context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.keys.Intern(key)
	itemBytes := s.encodeItem(item)

	ck := containerKey(itemBytes, id)
	if old, found := s.memByContainer.Get(ck); found && !old.tombstone {
		s.memByQName, _, _ = s.memByQName.Delete(qnameKey(id, old.value, itemBytes))
	}

	var sizeDelta int64
	tree, _, updated := s.memByContainer.Insert(ck, entry{value: value})
	s.memByContainer = tree
	if !updated {
		sizeDelta += int64(len(ck) + len(value))
	}
	s.memByQName, _, _ = s.memByQName.Insert(qnameKey(id, value, itemBytes), entry{value: value})
	s.bufBytes += sizeDelta

	if s.bufBytes >= s.byteBudget {
		return s.flushLocked(ctx)
	}
	return nil
}

// Remove deletes (item, key), returning the previous value and whether one
// existed. Deletions in the memory tier are tombstones; they are dropped
// only when the tier is next flushed and compacted.
func (s *DiskStore[T]) Remove(item T, key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keys.Find(key)
	if !ok {
		return "", false
	}
	itemBytes := s.encodeItem(item)
	ck := containerKey(itemBytes, id)

	if old, found := s.memByContainer.Get(ck); found {
		if old.tombstone {
			return "", false
		}
		tree, _, _ := s.memByContainer.Insert(ck, entry{tombstone: true})
		s.memByContainer = tree
		s.memByQName, _, _ = s.memByQName.Delete(qnameKey(id, old.value, itemBytes))
		return old.value, true
	}

	// Fall back to the on-disk tier.
	value, found := s.lookupDiskLocked(s.diskByContainer, ck)
	if !found {
		return "", false
	}
	tree, _, _ := s.memByContainer.Insert(ck, entry{tombstone: true})
	s.memByContainer = tree
	return value, true
}

// GetValue returns the value at (item, key), consulting the memory tier
// first and falling back to the on-disk tier.
func (s *DiskStore[T]) GetValue(item T, key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys.Find(key)
	if !ok {
		return "", false
	}
	ck := containerKey(s.encodeItem(item), id)

	if e, found := s.memByContainer.Get(ck); found {
		if e.tombstone {
			return "", false
		}
		return e.value, true
	}
	return s.lookupDiskLocked(s.diskByContainer, ck)
}

func (s *DiskStore[T]) lookupDiskLocked(table []diskEntry, key []byte) (string, bool) {
	blockIdx := 0
	if len(table) > 0 {
		idx := sort.Search(len(table), func(i int) bool {
			return string(table[i].key) >= string(key)
		})
		blockIdx = idx / blockSize
	}
	block, ok := s.blockCache.Get(blockIdx)
	if !ok {
		start := blockIdx * blockSize
		end := min(start+blockSize, len(table))
		if start >= len(table) {
			return "", false
		}
		block = table[start:end]
		s.blockCache.Add(blockIdx, block)
	}
	for _, e := range block {
		if string(e.key) == string(key) {
			return e.value, true
		}
	}
	return "", false
}

// flushLocked merges the memory tier into the on-disk tier, dropping
// tombstones, and persists both sorted tables to dir. Caller must hold
// s.mu.
func (s *DiskStore[T]) flushLocked(ctx context.Context) error {
	op := trace.Begin(ctx, nil, "graphannis.annostore.flush")
	var retErr error
	defer func() { op.End(retErr) }()

	// A tombstone in the memory tier deletes the matching on-disk entry;
	// snapshotTree itself skips tombstones.
	deleted := make(map[string]bool)
	it := s.memByContainer.Root().Iterator()
	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		if v.tombstone {
			deleted[string(k)] = true
		}
	}
	kept := make([]diskEntry, 0, len(s.diskByContainer))
	for _, e := range s.diskByContainer {
		if !deleted[string(e.key)] {
			kept = append(kept, e)
		}
	}
	s.diskByContainer = mergeSorted(kept, snapshotTree(s.memByContainer))
	s.diskByQName = mergeSorted(s.diskByQName, snapshotTree(s.memByQName))
	s.memByContainer = iradix.New[entry]()
	s.memByQName = iradix.New[entry]()
	s.bufBytes = 0
	s.blockCache.Purge()

	if err := s.persistTable("by_container.dat", s.diskByContainer); err != nil {
		retErr = err
		return err
	}
	if err := s.persistTable("by_anno_qname.dat", s.diskByQName); err != nil {
		retErr = err
		return err
	}
	return nil
}

func snapshotTree(tree *iradix.Tree[entry]) []diskEntry {
	var out []diskEntry
	iter := tree.Root().Iterator()
	for {
		k, v, ok := iter.Next()
		if !ok {
			break
		}
		if v.tombstone {
			continue
		}
		out = append(out, diskEntry{key: append([]byte(nil), k...), value: v.value})
	}
	return out
}

// mergeSorted merges two already-sorted tables, overwriting base entries
// with matching keys from fresh, implementing the write-through compaction
// policy ("merges drop tombstones when compacting").
func mergeSorted(base, fresh []diskEntry) []diskEntry {
	byKey := make(map[string]diskEntry, len(base)+len(fresh))
	for _, e := range base {
		byKey[string(e.key)] = e
	}
	for _, e := range fresh {
		byKey[string(e.key)] = e
	}
	out := make([]diskEntry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].key) < string(out[j].key)
	})
	return out
}

func (s *DiskStore[T]) persistTable(name string, table []diskEntry) error {
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return qerr.New(qerr.KindIo, "persist annotation table").
			WithDetail(qerr.DetailKeyPath, path).WithCause(err).Build()
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range table {
		if err := writeRecord(w, e); err != nil {
			return qerr.New(qerr.KindSerialization, "encode annotation record").WithCause(err).Build()
		}
	}
	if err := w.Flush(); err != nil {
		return qerr.New(qerr.KindIo, "flush annotation table").WithCause(err).Build()
	}
	return nil
}

func writeRecord(w *bufio.Writer, e diskEntry) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.key)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.key); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.value)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte(e.value))
	return err
}

func (s *DiskStore[T]) loadDiskTables() error {
	container, err := loadTable(filepath.Join(s.dir, "by_container.dat"))
	if err != nil {
		return err
	}
	qname, err := loadTable(filepath.Join(s.dir, "by_anno_qname.dat"))
	if err != nil {
		return err
	}
	s.diskByContainer = container
	s.diskByQName = qname
	return nil
}

func loadTable(path string) ([]diskEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, qerr.New(qerr.KindIo, "open annotation table").
			WithDetail(qerr.DetailKeyPath, path).WithCause(err).Build()
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []diskEntry
	for {
		e, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, qerr.New(qerr.KindCorruption, "decode annotation table record").
				WithDetail(qerr.DetailKeyPath, path).WithCause(err).Build()
		}
		out = append(out, e)
	}
	return out, nil
}

func readRecord(r *bufio.Reader) (diskEntry, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return diskEntry{}, err
	}
	key := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, key); err != nil {
		return diskEntry{}, fmt.Errorf("read key: %w", err)
	}
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return diskEntry{}, fmt.Errorf("read value length: %w", err)
	}
	value := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, value); err != nil {
		return diskEntry{}, fmt.Errorf("read value: %w", err)
	}
	return diskEntry{key: key, value: string(value)}, nil
}
