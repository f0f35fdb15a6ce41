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

package ingestilp

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestpipeline"
)

type noopEncodable struct{}

func (noopEncodable) WriteILPLine(out *strings.Builder) {}

// Test_Worker_PropagatesUpstreamFatalError covers the same swallowed-error
// shape as the SQL sink: a source-fatal item arriving on the worker's
// input channel must surface through w.err, not be logged and dropped.
// The batch stays empty here so no network connection is ever attempted.
func Test_Worker_PropagatesUpstreamFatalError(t *testing.T) {
	in := make(chan ingestpipeline.Item[int], 1)
	fatal := ingestpipeline.SourceError("malformed backfill record")
	in <- ingestpipeline.Item[int]{Err: fatal}
	close(in)

	w := newWorker[int](0, "unused:0", 10, 0, 0, func(int) Encodable { return noopEncodable{} }, in, logrus.NewEntry(logrus.New()))
	w.run()

	perr, ok := <-w.err
	if !ok || perr == nil {
		t.Fatalf("expected the upstream fatal error on w.err, got ok=%v perr=%v", ok, perr)
	}
	if !strings.Contains(perr.Error(), "malformed backfill record") {
		t.Fatalf("expected propagated error to carry the source error, got %q", perr.Error())
	}
}
