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

// Package ingestfile implements the file-backfill Source variants: NDJSON
// (one record per line) and delimited (CSV/pipe, header-driven column
// lookup). Grounded on original_source's meter_usage_{backfill,csv,dat}_file.rs:
// a malformed record ends the stream with a SourceError so the operator
// re-runs after fixing the file, and received_at is stamped at read time,
// never from data in the file.
package ingestfile

import (
	"bufio"
	"context"
	"os"

	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
)

// NDJSONSource reads one record per line from path, decoding each line
// with decode. It is consumed exactly once via Stream, same as every
// other Source implementation in this repo.
type NDJSONSource[T any] struct {
	path   string
	decode func(line []byte) (T, error)
}

// NewNDJSONSource builds an NDJSON backfill source over path.
func NewNDJSONSource[T any](path string, decode func(line []byte) (T, error)) *NDJSONSource[T] {
	return &NDJSONSource[T]{path: path, decode: decode}
}

// Stream opens path and emits one Item per line until EOF, or a single
// terminal Item carrying a SourceError on open failure, read failure, or
// the first malformed line.
func (s *NDJSONSource[T]) Stream(ctx context.Context) <-chan ingestpipeline.Item[T] {
	out := make(chan ingestpipeline.Item[T])

	go func() {
		defer close(out)

		f, err := os.Open(s.path)
		if err != nil {
			emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("failed to open NDJSON file: %v", err)})
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			rec, err := s.decode(line)
			if err != nil {
				emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("malformed NDJSON record: %v", err)})
				return
			}
			if !emit(ctx, out, ingestpipeline.Item[T]{Envelope: ingestrecord.NewEnvelope(rec)}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			emit(ctx, out, ingestpipeline.Item[T]{Err: ingestpipeline.SourceError("failed to read NDJSON file: %v", err)})
		}
	}()

	return out
}

func emit[T any](ctx context.Context, out chan<- ingestpipeline.Item[T], item ingestpipeline.Item[T]) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
