package corpusgraph

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/korpling/graphannis-go/anno"
	"github.com/korpling/graphannis-go/component"
	"github.com/korpling/graphannis-go/gs"
	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/qerr"
)

// Snapshot writes the graph's full state to its persist directory
// (see [WithPersistDir]), preferring the currently-active "current"
// subdirectory and demoting the prior one to "backup" only once the new
// one is fully written, so a crash mid-write never destroys both copies.
// A graph with no persist directory configured returns nil without doing
// anything.
func (g *AnnotationGraph) Snapshot(ctx context.Context) error {
	if ctx == nil {
		panic("corpusgraph.AnnotationGraph.Snapshot: nil context")
	}
	if g.persistDir == "" {
		return nil
	}
	op := trace.Begin(ctx, g.logger, "graphannis.corpusgraph.snapshot",
		slog.String("dir", g.persistDir))
	var err error
	defer func() { op.End(err) }()

	lockPath := filepath.Join(g.persistDir, ".lock")
	if mkErr := os.MkdirAll(g.persistDir, 0o755); mkErr != nil {
		err = qerr.New(qerr.KindIo, "create persist directory").WithDetail(qerr.DetailKeyPath, g.persistDir).WithCause(mkErr).Build()
		return err
	}
	fl := flock.New(lockPath)
	if lockErr := fl.Lock(); lockErr != nil {
		err = qerr.New(qerr.KindIo, "acquire snapshot lock").WithDetail(qerr.DetailKeyPath, lockPath).WithCause(lockErr).Build()
		return err
	}
	defer fl.Unlock()

	g.mu.RLock()
	snap := g.encodeSnapshotLocked()
	g.mu.RUnlock()

	stagingDir := filepath.Join(g.persistDir, "staging-"+uuid.NewString())
	if mkErr := os.MkdirAll(stagingDir, 0o755); mkErr != nil {
		err = qerr.New(qerr.KindIo, "create staging directory").WithCause(mkErr).Build()
		return err
	}
	defer os.RemoveAll(stagingDir)

	if writeErr := writeSnapshotFile(filepath.Join(stagingDir, "snapshot.dat"), snap); writeErr != nil {
		err = writeErr
		return err
	}

	currentDir := filepath.Join(g.persistDir, "current")
	backupDir := filepath.Join(g.persistDir, "backup")
	os.RemoveAll(backupDir)
	if _, statErr := os.Stat(currentDir); statErr == nil {
		if renErr := os.Rename(currentDir, backupDir); renErr != nil {
			err = qerr.New(qerr.KindIo, "demote current snapshot to backup").WithCause(renErr).Build()
			return err
		}
	}
	if renErr := os.Rename(stagingDir, currentDir); renErr != nil {
		err = qerr.New(qerr.KindIo, "install new snapshot").WithCause(renErr).Build()
		return err
	}
	// The save completed, so the backup is no longer needed.
	os.RemoveAll(backupDir)
	return nil
}

// Load replaces g's state with the snapshot found at g's persist
// directory, preferring "current" and falling back to "backup" if
// "current" is missing or fails to decode. Returns [qerr.KindIo] if no
// persist directory is configured or neither copy is readable.
func (g *AnnotationGraph) Load(ctx context.Context) error {
	if ctx == nil {
		panic("corpusgraph.AnnotationGraph.Load: nil context")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loadLocked(ctx)
}

func (g *AnnotationGraph) loadLocked(ctx context.Context) error {
	if g.persistDir == "" {
		return qerr.New(qerr.KindIo, "no persist directory configured").Build()
	}
	op := trace.Begin(ctx, g.logger, "graphannis.corpusgraph.load",
		slog.String("dir", g.persistDir))
	var err error
	defer func() { op.End(err) }()

	for _, sub := range []string{"current", "backup"} {
		path := filepath.Join(g.persistDir, sub, "snapshot.dat")
		snap, readErr := readSnapshotFile(path)
		if readErr != nil {
			continue
		}
		g.installSnapshotLocked(snap)
		return nil
	}
	err = qerr.New(qerr.KindIo, "no readable snapshot").WithDetail(qerr.DetailKeyPath, g.persistDir).Build()
	return err
}

// BackgroundPersister periodically snapshots an annotation graph under a
// single bounded goroutine, the idiomatic equivalent of a dedicated
// persistence thread run under a mutex.
type BackgroundPersister struct {
	group *errgroup.Group
	stop  chan struct{}
}

// StartBackgroundPersistence launches one goroutine that calls Snapshot
// every time a tick arrives on ticks, until ctx is cancelled or Stop is
// called. The caller owns ticks' lifetime.
func StartBackgroundPersistence(ctx context.Context, g *AnnotationGraph, ticks <-chan struct{}) *BackgroundPersister {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(1)
	stop := make(chan struct{})
	group.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-stop:
				return nil
			case <-ticks:
				if err := g.Snapshot(gctx); err != nil {
					return err
				}
			}
		}
	})
	return &BackgroundPersister{group: group, stop: stop}
}

// Stop signals the background goroutine to exit and waits for it.
func (p *BackgroundPersister) Stop() error {
	close(p.stop)
	return p.group.Wait()
}

// --- encoding ---

type snapshotNode struct {
	name string
	anno []snapshotAnno
}

type snapshotAnno struct {
	namespace, name, value string
}

type snapshotEdge struct {
	sourceName, targetName string
	anno                   []snapshotAnno
}

type snapshotComponent struct {
	typ           component.Type
	layer, name   string
	edges         []snapshotEdge
}

type graphSnapshot struct {
	nodes      []snapshotNode
	components []snapshotComponent
}

// pathCollator orders node names the way a locale-aware
// path comparator would, per the text-position comparator's optional
// locale-aware collation.
var pathCollator = collate.New(language.Und)

func (g *AnnotationGraph) encodeSnapshotLocked() graphSnapshot {
	names := make([]string, 0, len(g.nameToID))
	for name := range g.nameToID {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return pathCollator.CompareString(names[i], names[j]) < 0
	})

	snap := graphSnapshot{nodes: make([]snapshotNode, 0, len(names))}
	for _, name := range names {
		id := g.nameToID[name]
		anns := g.nodeAnno.AllAnnotations(id)
		sn := snapshotNode{name: name, anno: make([]snapshotAnno, 0, len(anns))}
		for _, a := range anns {
			sn.anno = append(sn.anno, snapshotAnno{a.Key.Namespace, a.Key.Name, a.Value})
		}
		snap.nodes = append(snap.nodes, sn)
	}

	for _, d := range g.allComponentDescriptors() {
		storage := g.storages[d]
		sc := snapshotComponent{typ: d.Type, layer: d.Layer, name: d.Name}
		var edges []anno.Edge
		for e := range storage.Edges() {
			edges = append(edges, e)
		}
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Source != edges[j].Source {
				return edges[i].Source < edges[j].Source
			}
			return edges[i].Target < edges[j].Target
		})
		for _, e := range edges {
			srcName, tgtName := g.idToName[e.Source], g.idToName[e.Target]
			se := snapshotEdge{sourceName: srcName, targetName: tgtName}
			for _, a := range storage.EdgeAnnotations().AllAnnotations(e) {
				se.anno = append(se.anno, snapshotAnno{a.Key.Namespace, a.Key.Name, a.Value})
			}
			sc.edges = append(sc.edges, se)
		}
		snap.components = append(snap.components, sc)
	}
	return snap
}

func (g *AnnotationGraph) installSnapshotLocked(snap graphSnapshot) {
	g.nodeAnno = anno.NewStore[anno.NodeID]().WithLogger(g.logger)
	g.components = component.NewRegistry()
	g.storages = make(map[component.Descriptor]gs.GraphStorage)
	g.nameToID = make(map[string]anno.NodeID)
	g.idToName = make(map[anno.NodeID]string)
	g.nextNodeID = 0

	for _, sn := range snap.nodes {
		id := g.nodeID(sn.name)
		for _, a := range sn.anno {
			g.nodeAnno.Insert(id, anno.Key{Namespace: a.namespace, Name: a.name}, a.value)
		}
	}
	for _, sc := range snap.components {
		d := component.Descriptor{Type: sc.typ, Layer: sc.layer, Name: sc.name}
		storage := g.graphStorageLocked(d)
		for _, se := range sc.edges {
			src, srcOK := g.resolvedNodeID(se.sourceName)
			tgt, tgtOK := g.resolvedNodeID(se.targetName)
			if !srcOK || !tgtOK {
				continue
			}
			e := anno.Edge{Source: src, Target: tgt}
			storage.AddEdge(e)
			for _, a := range se.anno {
				storage.EdgeAnnotations().Insert(e, anno.Key{Namespace: a.namespace, Name: a.name}, a.value)
			}
		}
	}
}

func writeSnapshotFile(path string, snap graphSnapshot) error {
	f, createErr := os.Create(path)
	if createErr != nil {
		return qerr.New(qerr.KindIo, "create snapshot file").WithDetail(qerr.DetailKeyPath, path).WithCause(createErr).Build()
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	writeUvarint(w, uint64(len(snap.nodes)))
	for _, n := range snap.nodes {
		writeLPString(w, n.name)
		writeUvarint(w, uint64(len(n.anno)))
		for _, a := range n.anno {
			writeSnapshotAnno(w, a)
		}
	}

	writeUvarint(w, uint64(len(snap.components)))
	for _, c := range snap.components {
		w.WriteByte(byte(c.typ))
		writeLPString(w, c.layer)
		writeLPString(w, c.name)
		writeUvarint(w, uint64(len(c.edges)))
		for _, e := range c.edges {
			writeLPString(w, e.sourceName)
			writeLPString(w, e.targetName)
			writeUvarint(w, uint64(len(e.anno)))
			for _, a := range e.anno {
				writeSnapshotAnno(w, a)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return qerr.New(qerr.KindIo, "flush snapshot file").WithDetail(qerr.DetailKeyPath, path).WithCause(err).Build()
	}
	return nil
}

func readSnapshotFile(path string) (graphSnapshot, error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return graphSnapshot{}, qerr.New(qerr.KindIo, "open snapshot file").WithDetail(qerr.DetailKeyPath, path).WithCause(openErr).Build()
	}
	defer f.Close()
	r := bufio.NewReader(f)

	nodeCount, err := readUvarint(r)
	if err != nil {
		return graphSnapshot{}, corruptSnapshot(path, err)
	}
	snap := graphSnapshot{nodes: make([]snapshotNode, 0, nodeCount)}
	for i := uint64(0); i < nodeCount; i++ {
		name, err := readLPString(r)
		if err != nil {
			return graphSnapshot{}, corruptSnapshot(path, err)
		}
		annoCount, err := readUvarint(r)
		if err != nil {
			return graphSnapshot{}, corruptSnapshot(path, err)
		}
		sn := snapshotNode{name: name, anno: make([]snapshotAnno, 0, annoCount)}
		for j := uint64(0); j < annoCount; j++ {
			a, err := readSnapshotAnno(r)
			if err != nil {
				return graphSnapshot{}, corruptSnapshot(path, err)
			}
			sn.anno = append(sn.anno, a)
		}
		snap.nodes = append(snap.nodes, sn)
	}

	compCount, err := readUvarint(r)
	if err != nil {
		return graphSnapshot{}, corruptSnapshot(path, err)
	}
	for i := uint64(0); i < compCount; i++ {
		typByte, err := r.ReadByte()
		if err != nil {
			return graphSnapshot{}, corruptSnapshot(path, err)
		}
		layer, err := readLPString(r)
		if err != nil {
			return graphSnapshot{}, corruptSnapshot(path, err)
		}
		name, err := readLPString(r)
		if err != nil {
			return graphSnapshot{}, corruptSnapshot(path, err)
		}
		edgeCount, err := readUvarint(r)
		if err != nil {
			return graphSnapshot{}, corruptSnapshot(path, err)
		}
		sc := snapshotComponent{typ: component.Type(typByte), layer: layer, name: name}
		for j := uint64(0); j < edgeCount; j++ {
			srcName, err := readLPString(r)
			if err != nil {
				return graphSnapshot{}, corruptSnapshot(path, err)
			}
			tgtName, err := readLPString(r)
			if err != nil {
				return graphSnapshot{}, corruptSnapshot(path, err)
			}
			annoCount, err := readUvarint(r)
			if err != nil {
				return graphSnapshot{}, corruptSnapshot(path, err)
			}
			se := snapshotEdge{sourceName: srcName, targetName: tgtName}
			for k := uint64(0); k < annoCount; k++ {
				a, err := readSnapshotAnno(r)
				if err != nil {
					return graphSnapshot{}, corruptSnapshot(path, err)
				}
				se.anno = append(se.anno, a)
			}
			sc.edges = append(sc.edges, se)
		}
		snap.components = append(snap.components, sc)
	}
	return snap, nil
}

func corruptSnapshot(path string, cause error) error {
	return qerr.New(qerr.KindCorruption, "decode snapshot").WithDetail(qerr.DetailKeyPath, path).WithCause(cause).Build()
}

func writeSnapshotAnno(w *bufio.Writer, a snapshotAnno) {
	writeLPString(w, a.namespace)
	writeLPString(w, a.name)
	writeLPString(w, a.value)
}

func readSnapshotAnno(r *bufio.Reader) (snapshotAnno, error) {
	ns, err := readLPString(r)
	if err != nil {
		return snapshotAnno{}, err
	}
	name, err := readLPString(r)
	if err != nil {
		return snapshotAnno{}, err
	}
	value, err := readLPString(r)
	if err != nil {
		return snapshotAnno{}, err
	}
	return snapshotAnno{namespace: ns, name: name, value: value}, nil
}

func writeUvarint(w *bufio.Writer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}

func readUvarint(r *bufio.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func writeLPString(w *bufio.Writer, s string) {
	writeUvarint(w, uint64(len(s)))
	w.WriteString(s)
}

func readLPString(r *bufio.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
