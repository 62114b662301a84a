// Package resolver reconstructs the layout of a heap allocation from its
// call stack: it classifies the stack into a resolution strategy, builds
// type trees from debug metadata and synthesizes the backing storage of
// swiss tables and btrees around their element type.
package resolver

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/telemetry"
)

// Resolver is the entry point used by the histogram pipeline.
type Resolver struct {
	store      metadata.Store
	builder    *Builder
	classifier *Classifier
}

// New creates a resolver over store.
func New(store metadata.Store, opts ...Option) *Resolver {
	b := NewBuilder(store, opts...)
	return &Resolver{
		store:      store,
		builder:    b,
		classifier: NewClassifier(store, b.logger),
	}
}

// Builder returns the tree builder.
func (r *Resolver) Builder() *Builder { return r.builder }

// CacheNamespace identifies everything a resolved tree depends on besides
// the call stack and request size: the metadata content, the mode and the
// synthesizer constants. It reports false when the store cannot identify
// its content, in which case resolved trees must not be shared.
func (r *Resolver) CacheNamespace() (string, bool, error) {
	fp, ok := r.store.(metadata.Fingerprinter)
	if !ok {
		return "", false, nil
	}
	content, err := fp.Fingerprint()
	if err != nil {
		return "", false, err
	}
	synth := r.builder.synth
	return fmt.Sprintf("%s|%s|p%d|a%d|g%d|w%d|h%t:%d", content, r.builder.mode, r.store.PointerWidthBits(),
		synth.SwissAlignmentBytes, synth.SwissGroupWidth, synth.WordBits, synth.Hashtablez, synth.HashtablezBits), true, nil
}

// Classifier returns the call stack classifier.
func (r *Resolver) Classifier() *Classifier { return r.classifier }

// ResolveTypeName builds the tree of a named type.
func (r *Resolver) ResolveTypeName(ctx context.Context, typeName string) (*typetree.TypeTree, error) {
	ctx, span := telemetry.StartSpan(ctx, "resolver.ResolveTypeName", attribute.String("type", typeName))
	defer span.End()

	tree, err := r.builder.BuildFromTypeName(ctx, typeName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return tree, nil
}

// ResolveFrame builds the type recorded for a heap allocation site. Sites
// recorded without a column are found by retrying with column 0.
func (r *Resolver) ResolveFrame(ctx context.Context, frame metadata.Frame) (*typetree.TypeTree, error) {
	typeName, err := r.store.LookupHeapAllocSite(frame)
	if err != nil {
		frame.Column = 0
		if typeName, err = r.store.LookupHeapAllocSite(frame); err != nil {
			return nil, err
		}
	}
	return r.builder.createTree(typeName, false, heapAllocContainer)
}

// ResolveCallstack resolves an allocation of requestBytes made by
// callstack. A heap allocation site on any frame wins over container
// classification.
func (r *Resolver) ResolveCallstack(ctx context.Context, callstack metadata.CallStack, requestBytes int64) (*typetree.TypeTree, error) {
	ctx, span := telemetry.StartSpan(ctx, "resolver.ResolveCallstack",
		attribute.Int("frames", len(callstack)),
		attribute.Int64("request_bytes", requestBytes),
	)
	defer span.End()

	tree, err := r.resolveCallstack(ctx, callstack, requestBytes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("type", tree.Name()))
	return tree, nil
}

func (r *Resolver) resolveCallstack(ctx context.Context, callstack metadata.CallStack, requestBytes int64) (*typetree.TypeTree, error) {
	if len(callstack) == 0 {
		return nil, errors.InvalidArgumentf("callstack is empty")
	}

	for _, frame := range callstack {
		if tree, err := r.ResolveFrame(ctx, frame); err == nil {
			return tree, nil
		}
	}

	strategy, err := r.classifier.Classify(callstack)
	if err != nil {
		return nil, err
	}
	return r.builder.BuildFromStrategy(ctx, strategy, callstack, requestBytes)
}
