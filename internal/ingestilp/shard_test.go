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
	"strconv"
	"testing"
)

// Test_ShardIndex_Stable ensures the same key always maps to the same
// worker, the property the parallel sink relies on for per-entity
// ordering.
func Test_ShardIndex_Stable(t *testing.T) {
	ring := newShardRing(8)
	k := "meter-42"
	i1 := ring.Index(k)
	i2 := ring.Index(k)
	if i1 != i2 {
		t.Fatalf("expected stable shard assignment for %q, got %d then %d", k, i1, i2)
	}
}

// Test_ShardIndex_BalanceUniform approximates shard balance by hashing a
// large key set into a fixed worker count and asserting low variance
// across workers, the same shape as the rate limiter's hash-balance test
// but exercising rendezvous hashing instead of a raw modulo.
func Test_ShardIndex_BalanceUniform(t *testing.T) {
	const workers = 32
	const keys = 100_000

	ring := newShardRing(workers)
	counts := make([]int, workers)
	for i := 0; i < keys; i++ {
		k := "meter-" + strconv.Itoa(i)
		counts[ring.Index(k)]++
	}

	mean := float64(keys) / float64(workers)
	maxDev := 0.0
	for _, c := range counts {
		dev := absf(float64(c)-mean) / mean
		if dev > maxDev {
			maxDev = dev
		}
	}
	if maxDev > 0.15 {
		t.Fatalf("rendezvous hash imbalance too high: max deviation=%.2f (counts=%v)", maxDev, counts)
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Test_ShardIndex_WithinRange guards against an out-of-bounds index for a
// single-worker ring, the degenerate case Config.Workers < 1 normalizes to.
func Test_ShardIndex_WithinRange(t *testing.T) {
	ring := newShardRing(1)
	if idx := ring.Index("any-key"); idx != 0 {
		t.Fatalf("expected single-worker ring to always return 0, got %d", idx)
	}
}
