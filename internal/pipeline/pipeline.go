package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"labnorm/internal"
)

// Normalizer is one per-record step of the pipeline.
type Normalizer interface {
	Normalize(rec *internal.LabRecord)
}

type NormalizerFunc func(rec *internal.LabRecord)

func (f NormalizerFunc) Normalize(rec *internal.LabRecord) {
	f(rec)
}

// Stages returns the per-record steps in execution order.
func Stages() []Normalizer {
	return []Normalizer{
		NormalizerFunc(prepare),
		NormalizerFunc(stripNoise),
		NormalizerFunc(extractAnnotations),
		NormalizerFunc(classifyScale),
		NormalizerFunc(normalizeNumeric),
		NormalizerFunc(normalizeReferences),
		NormalizerFunc(normalizeUnit),
	}
}

type Pipeline struct {
	stages  []Normalizer
	workers int
}

func New(workers int, stages ...Normalizer) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if len(stages) == 0 {
		stages = Stages()
	}
	return &Pipeline{stages: stages, workers: workers}
}

// NormalizeRecord runs every stage on a single record.
func (p *Pipeline) NormalizeRecord(rec *internal.LabRecord) {
	for _, st := range p.stages {
		st.Normalize(rec)
	}
}

// Normalize runs the stages over a batch in place. The batch is split into
// contiguous shards, one goroutine each.
func (p *Pipeline) Normalize(ctx context.Context, batch []internal.LabRecord) error {
	if len(batch) == 0 {
		return nil
	}
	shards := p.workers
	if shards > len(batch) {
		shards = len(batch)
	}
	size := (len(batch) + shards - 1) / shards

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(batch); start += size {
		shard := batch[start:min(start+size, len(batch))]
		g.Go(func() error {
			for i := range shard {
				if i%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				p.NormalizeRecord(&shard[i])
			}
			return nil
		})
	}
	return g.Wait()
}

// Normalize runs the default stages over a batch and resolves test names
// within it.
func Normalize(batch []internal.LabRecord) {
	p := New(1)
	for i := range batch {
		p.NormalizeRecord(&batch[i])
	}
	acc := NewAccumulator()
	acc.Observe(batch)
	acc.Finalize().ApplyAll(batch)
}
