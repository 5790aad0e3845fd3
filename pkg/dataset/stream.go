package dataset

import (
	"context"
	"io"
	"math/rand/v2"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/menta2k/srgan-data/pkg/augment"
	"github.com/menta2k/srgan-data/pkg/processing"
	"github.com/menta2k/srgan-data/pkg/tensor"
	"github.com/menta2k/srgan-data/pkg/types"
)

// ErrClosed is returned by Next once the stream has been closed.
var ErrClosed = errors.New("stream closed")

const (
	DefaultPrefetch      = 2
	DefaultShuffleBuffer = 10240
)

// Options configures a training stream.
type Options struct {
	BatchSize       int
	GroundTruthSize int
	Ratio           int
	Mode            types.DecodeMode
	Flip            bool
	Rotate          bool

	// Shuffle routes records through a reservoir of ShuffleBuffer records
	// after repetition, so the reservoir spans epoch boundaries.
	Shuffle       bool
	ShuffleBuffer int

	// Parallelism bounds concurrent decode and augment work, default NumCPU.
	Parallelism int
	// Prefetch is the number of ready batches kept ahead of the consumer.
	Prefetch int
	// Epochs is the number of passes over the source, 0 repeats forever.
	Epochs int
	// Seed drives every random decision of the stream, 0 picks one at random.
	Seed uint64

	Codec Codec
}

// DefaultOptions returns the usual training setup: 128px high-res crops at
// ratio 4, flips and rotations on, shuffled, repeating forever.
func DefaultOptions() Options {
	return Options{
		BatchSize:       16,
		GroundTruthSize: 128,
		Ratio:           4,
		Mode:            types.Paths,
		Flip:            true,
		Rotate:          true,
		Shuffle:         true,
		ShuffleBuffer:   DefaultShuffleBuffer,
		Prefetch:        DefaultPrefetch,
	}
}

// WithDefaults fills in zero Parallelism, Prefetch, ShuffleBuffer (when
// shuffling), Codec and Seed.
func (o Options) WithDefaults() Options {
	if o.Parallelism == 0 {
		o.Parallelism = runtime.NumCPU()
	}
	if o.Prefetch == 0 {
		o.Prefetch = DefaultPrefetch
	}
	if o.Shuffle && o.ShuffleBuffer == 0 {
		o.ShuffleBuffer = DefaultShuffleBuffer
	}
	if !o.Shuffle && o.ShuffleBuffer > 0 {
		klog.Warningf("shuffle buffer of %d ignored, shuffling is disabled", o.ShuffleBuffer)
	}
	if o.Codec == nil {
		o.Codec = processing.NewProcessor()
	}
	if o.Seed == 0 {
		o.Seed = rand.Uint64()
		klog.V(1).Infof("stream seed not set, using %d", o.Seed)
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	if o.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if err := o.augmenter().Check(); err != nil {
		return err
	}
	if o.Shuffle && o.ShuffleBuffer <= 0 {
		return errors.Errorf("shuffle buffer must be positive, got %d", o.ShuffleBuffer)
	}
	if o.Parallelism <= 0 {
		return errors.Errorf("parallelism must be positive, got %d", o.Parallelism)
	}
	if o.Prefetch <= 0 {
		return errors.Errorf("prefetch must be positive, got %d", o.Prefetch)
	}
	if o.Epochs < 0 {
		return errors.Errorf("epochs must not be negative, got %d", o.Epochs)
	}
	if o.Mode != types.Paths && o.Mode != types.Embedded {
		return errors.Errorf("unknown decode mode %v", o.Mode)
	}
	return nil
}

func (o Options) augmenter() augment.Augmenter {
	return augment.Augmenter{
		GroundTruthSize: o.GroundTruthSize,
		Ratio:           o.Ratio,
		Flip:            o.Flip,
		Rotate:          o.Rotate,
	}
}

// Batch holds BatchSize augmented pairs stacked as (B, h, w, C) low-res and
// (B, H, W, C) high-res tensors.
type Batch struct {
	Names   []string
	LowRes  tensor.Tensor
	HighRes tensor.Tensor
}

// Size is the number of pairs in the batch.
func (b Batch) Size() int {
	return len(b.Names)
}

// Pair returns element i as a normalized pair.
func (b Batch) Pair(i int) (types.NormalizedPair, error) {
	low, err := b.LowRes.Image(i)
	if err != nil {
		return types.NormalizedPair{}, err
	}
	high, err := b.HighRes.Image(i)
	if err != nil {
		return types.NormalizedPair{}, err
	}
	return types.NormalizedPair{Name: b.Names[i], LowRes: low, HighRes: high}, nil
}

type result struct {
	name string
	pair types.NormalizedPair
	err  error
}

// Stream is a lazy, prefetching sequence of augmented batches. Next is meant
// for a single consumer.
type Stream struct {
	opts      Options
	augmenter augment.Augmenter
	batches   chan Batch
	cancel    context.CancelFunc
	closed    atomic.Bool
	done      chan struct{}
	err       error
}

// Build starts the stream goroutines. Records flow through repeat, optional
// shuffle, parallel decode and augment, batching and prefetch. The stream
// runs until the configured epochs are exhausted, a record fails, ctx is
// cancelled or Close is called.
func Build(ctx context.Context, src Source, opts Options) (*Stream, error) {
	if src == nil {
		return nil, errors.New("nil source")
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid stream options")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		opts:      opts,
		augmenter: opts.augmenter(),
		batches:   make(chan Batch, opts.Prefetch),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	records := make(chan types.Record, opts.Parallelism)
	pending := make(chan chan result, opts.Parallelism)

	g.Go(func() error {
		defer close(records)
		return s.read(gctx, src, records)
	})
	g.Go(func() error {
		defer close(pending)
		return s.dispatch(gctx, records, pending)
	})
	g.Go(func() error {
		return s.batch(gctx, pending)
	})

	klog.V(1).Infof("stream started: batch=%d gt=%d ratio=%d mode=%v shuffle=%t/%d parallelism=%d prefetch=%d epochs=%d seed=%d",
		opts.BatchSize, opts.GroundTruthSize, opts.Ratio, opts.Mode, opts.Shuffle, opts.ShuffleBuffer,
		opts.Parallelism, opts.Prefetch, opts.Epochs, opts.Seed)

	go func() {
		err := g.Wait()
		if err != nil && !s.closed.Load() {
			klog.Errorf("stream halted: %v", err)
		}
		s.err = err
		cancel()
		close(s.batches)
		close(s.done)
	}()
	return s, nil
}

// Options returns the effective options, defaults included.
func (s *Stream) Options() Options {
	return s.opts
}

// Done is closed once every stream goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Next returns the next batch. It returns io.EOF after the last batch of a
// finite run, the error that halted the stream, or ctx.Err().
func (s *Stream) Next(ctx context.Context) (Batch, error) {
	if s.closed.Load() {
		return Batch{}, ErrClosed
	}
	select {
	case b, ok := <-s.batches:
		if ok {
			return b, nil
		}
		if s.closed.Load() {
			return Batch{}, ErrClosed
		}
		if s.err != nil {
			return Batch{}, s.err
		}
		return Batch{}, io.EOF
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	}
}

// Close stops the stream and waits for its goroutines to exit.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	for range s.batches {
	}
	return nil
}

// read repeats the source for the configured epochs, passing records through
// the shuffle buffer when enabled.
func (s *Stream) read(ctx context.Context, src Source, out chan<- types.Record) error {
	var buf *shuffleBuffer
	if s.opts.Shuffle {
		buf = newShuffleBuffer(rand.New(rand.NewPCG(s.opts.Seed, 1)), s.opts.ShuffleBuffer)
	}

	emit := func(rec types.Record) error {
		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for epoch := 0; s.opts.Epochs == 0 || epoch < s.opts.Epochs; epoch++ {
		if err := src.Reset(); err != nil {
			return errors.Wrap(err, "resetting source")
		}
		n := 0
		for {
			rec, err := src.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			n++
			if buf != nil {
				if evicted, ok := buf.add(rec); ok {
					if err := emit(evicted); err != nil {
						return err
					}
				}
				continue
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
		if n == 0 {
			return errors.Wrapf(ErrEmptySource, "epoch %d", epoch)
		}
		klog.V(2).Infof("epoch %d read %d records", epoch, n)
	}

	if buf != nil {
		for {
			rec, ok := buf.drain()
			if !ok {
				break
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch hands every record to a bounded worker and queues its future in
// arrival order, which keeps the output order independent of worker timing.
func (s *Stream) dispatch(ctx context.Context, in <-chan types.Record, pending chan<- chan result) error {
	seeds := rand.New(rand.NewPCG(s.opts.Seed, 2))
	var workers errgroup.Group
	workers.SetLimit(s.opts.Parallelism)

	for rec := range in {
		future := make(chan result, 1)
		select {
		case pending <- future:
		case <-ctx.Done():
			workers.Wait()
			return ctx.Err()
		}
		seed := seeds.Uint64()
		workers.Go(func() error {
			future <- s.process(ctx, rec, seed)
			return nil
		})
	}
	return workers.Wait()
}

// process decodes, validates and augments one record with its own rng.
func (s *Stream) process(ctx context.Context, rec types.Record, seed uint64) result {
	if err := ctx.Err(); err != nil {
		return result{name: rec.Name, err: err}
	}
	sample, err := Decode(ctx, rec, s.opts.Mode, s.opts.Codec)
	if err != nil {
		return result{name: rec.Name, err: err}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pair, _, err := s.augmenter.Augment(rng, sample)
	if err != nil {
		return result{name: rec.Name, err: errors.Wrapf(err, "augmenting %q", rec.Name)}
	}
	return result{name: rec.Name, pair: pair}
}

// batch collects results in order into full batches. The first failed result
// halts the stream and an incomplete final batch is dropped.
func (s *Stream) batch(ctx context.Context, pending <-chan chan result) error {
	size := s.opts.BatchSize
	names := make([]string, 0, size)
	lows := make([]types.FloatImage, 0, size)
	highs := make([]types.FloatImage, 0, size)
	count := 0

	for future := range pending {
		var r result
		select {
		case r = <-future:
		case <-ctx.Done():
			return ctx.Err()
		}
		if r.err != nil {
			return r.err
		}
		names = append(names, r.name)
		lows = append(lows, r.pair.LowRes)
		highs = append(highs, r.pair.HighRes)
		if len(names) < size {
			continue
		}

		low, err := tensor.Stack(lows)
		if err != nil {
			return errors.Wrap(err, "stacking low-res batch")
		}
		high, err := tensor.Stack(highs)
		if err != nil {
			return errors.Wrap(err, "stacking high-res batch")
		}
		select {
		case s.batches <- Batch{Names: names, LowRes: low, HighRes: high}:
		case <-ctx.Done():
			return ctx.Err()
		}
		count++
		names = make([]string, 0, size)
		lows = lows[:0]
		highs = highs[:0]
	}

	if len(names) > 0 {
		klog.V(1).Infof("dropping incomplete final batch of %d samples", len(names))
	}
	klog.V(1).Infof("stream finished after %d batches", count)
	return nil
}
