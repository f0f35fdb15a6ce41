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

package ingestpipeline

import "fmt"

// SinkBuilder constructs a Sink[T] for a given kind selector. It lives here,
// not in ingestilp/ingestsql, so that selecting between the two concrete
// sink packages never requires ingestpipeline to import either of them —
// callers (cmd/ingestd) close over a kind-specific builder and hand it to
// BuildSink.
type SinkBuilder[T any] func() (Sink[T], error)

// BuildSink resolves kind to one of the supplied builders, grounded on the
// rate limiter's BuildPersister switch-on-adapter-name shape.
func BuildSink[T any](kind string, ilp, pgwire SinkBuilder[T]) (Sink[T], error) {
	switch kind {
	case "ilp":
		return ilp()
	case "pgwire":
		return pgwire()
	default:
		return nil, fmt.Errorf("unknown sink kind: %s", kind)
	}
}
