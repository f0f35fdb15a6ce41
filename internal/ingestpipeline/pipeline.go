// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ingestpipeline composes a Source, zero or more Transforms, and a
// Sink into a single run. It mirrors the teacher's capability-interface
// idiom (a small set of methods, a closed set of concrete implementations)
// instead of open inheritance, per the re-architecture notes this repo was
// built from.
package ingestpipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestrecord"
)

// ErrorKind classifies a PipelineError so callers can tell a retryable,
// locally-contained rejection from a fatal one without string matching.
type ErrorKind int

const (
	// KindSource marks bind failures, malformed upstream data in strict
	// mode, and unrecoverable source I/O. Always fatal to the pipeline.
	KindSource ErrorKind = iota
	// KindTransform marks a per-record validation rejection. Never fatal;
	// transforms contain these locally and never return them upward.
	KindTransform
	// KindSink marks a sink failure that survived its own retry budget, or
	// a downstream channel closing unexpectedly. Always fatal.
	KindSink
)

func (k ErrorKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTransform:
		return "transform"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// PipelineError is the taxonomy-by-kind error type every stage returns.
// It plays the same role as the original Rust PipelineError enum
// (Source/Transform/Sink variants): transforms contain their own errors,
// sources and sinks propagate fatals up to Pipeline.Run, and the top-level
// process exits on the first fatal from either of its two pipelines.
type PipelineError struct {
	Kind ErrorKind
	Msg  string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func SourceError(format string, args ...any) *PipelineError {
	return &PipelineError{Kind: KindSource, Msg: fmt.Sprintf(format, args...)}
}

func TransformError(format string, args ...any) *PipelineError {
	return &PipelineError{Kind: KindTransform, Msg: fmt.Sprintf(format, args...)}
}

func SinkError(format string, args ...any) *PipelineError {
	return &PipelineError{Kind: KindSink, Msg: fmt.Sprintf(format, args...)}
}

// Item is what flows through every stage's channel: either a successfully
// produced/validated envelope, or a terminal error from the stage that
// produced it.
type Item[T any] struct {
	Envelope ingestrecord.Envelope[T]
	Err      *PipelineError
}

// Source is a polymorphic producer of envelopes. A source may be consumed
// at most once — Stream returns the receiving end of a channel that is
// closed when the source is exhausted; calling Stream twice is a
// programmer error (re-expressed from the Rust take-once Option<Receiver>
// slot as "the channel is the single source of truth: read it once").
type Source[T any] interface {
	Stream(ctx context.Context) <-chan Item[T]
}

// Transform is a stateless per-record step: one envelope in, one envelope
// or one rejection out. Validation (ingesttransform) is the only
// implementation in this repo, but the interface stays generic per spec §9.
type Transform[T any] interface {
	Apply(env ingestrecord.Envelope[T]) (ingestrecord.Envelope[T], *PipelineError)
}

// Sink is a polymorphic consumer of envelopes: it batches and flushes, and
// returns a fatal error (or nil) once the input channel closes.
type Sink[T any] interface {
	Run(ctx context.Context, input <-chan Item[T]) *PipelineError
}

// Pipeline composes one source, a chain of transforms, and one sink. Run
// threads each transform as a map-with-error step that preserves envelope
// order, then hands the resulting stream to the sink.
type Pipeline[T any] struct {
	Name       string
	Source     Source[T]
	Transforms []Transform[T]
	Sink       Sink[T]
	Log        *logrus.Entry
}

// Run obtains the source's stream, applies every transform in order
// (dropping and counting rejections without ever returning them to the
// sink), and lets the sink consume the result to completion. It returns
// nil when the source stream ends and the sink's final flush succeeds;
// otherwise it returns the first fatal PipelineError.
func (p *Pipeline[T]) Run(ctx context.Context) *PipelineError {
	log := p.Log
	if log == nil {
		log = logrus.WithField("pipeline", p.Name)
	}

	raw := p.Source.Stream(ctx)
	transformed := make(chan Item[T])

	go func() {
		defer close(transformed)
		for item := range raw {
			if item.Err != nil {
				// Source-level error already terminal; pass through so
				// Sink.Run can observe it and the caller learns why the
				// stream ended. Source implementations close their
				// channel immediately after emitting a fatal item.
				select {
				case transformed <- item:
				case <-ctx.Done():
				}
				continue
			}

			env := item.Envelope
			var terr *PipelineError
			for _, t := range p.Transforms {
				env, terr = t.Apply(env)
				if terr != nil {
					break
				}
			}
			if terr != nil {
				log.WithField("error", terr.Error()).Debug("transform rejected envelope")
				continue
			}

			select {
			case transformed <- Item[T]{Envelope: env}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return p.Sink.Run(ctx, transformed)
}
