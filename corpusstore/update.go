package corpusstore

import (
	"context"
	"log/slog"

	"github.com/korpling/graphannis-go/corpusgraph"
	"github.com/korpling/graphannis-go/internal/trace"
	"github.com/korpling/graphannis-go/qerr"
	"github.com/korpling/graphannis-go/update"
)

// ApplyUpdate applies batch to the named corpus, creating it if it does
// not already exist. Applying an update batch requires exclusive access
// and invalidates any concurrently running iterators over this corpus;
// callers must have drained or abandoned any in-flight Find/Count/
// Frequency iteration over it before calling ApplyUpdate.
func (m *Manager) ApplyUpdate(ctx context.Context, corpus string, batch *update.Batch, progress corpusgraph.ProgressFunc) error {
	op := trace.Begin(ctx, m.logger, "graphannis.corpusstore.apply_update", slog.String("corpus", corpus))
	var err error
	defer func() { op.End(err) }()

	g, openErr := m.open(ctx, corpus)
	if openErr != nil {
		if !qerr.Of(openErr, qerr.KindNoSuchCorpus) {
			err = openErr
			return err
		}
		g, err = m.CreateCorpus(corpus)
		if err != nil {
			return err
		}
	}
	err = g.ApplyUpdate(ctx, batch, progress)
	return err
}
