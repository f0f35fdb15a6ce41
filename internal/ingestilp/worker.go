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
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gridflow/internal/ingestmetrics"
	"gridflow/internal/ingestpipeline"
	"gridflow/internal/ingestrecord"
)

// worker owns a single TCP connection to QuestDB's ILP endpoint and drains
// one shard's input channel into batched line-protocol writes. Grounded on
// the core package's Worker, but stopped by the closing of its input
// channel (with the WaitGroup held by Sink.Run) instead of a stop channel
// or a context, because the owning sink already knows exactly when to stop
// feeding the channel (it closes it) and wants a clean final flush first.
type worker[T any] struct {
	id            int
	addr          string
	batchSize     int
	maxRetries    uint32
	retryBackoff  time.Duration
	encode        func(T) Encodable
	in            <-chan ingestpipeline.Item[T]
	log           *logrus.Entry
	err           chan *ingestpipeline.PipelineError
}

func newWorker[T any](id int, addr string, batchSize int, maxRetries uint32, retryBackoff time.Duration, encode func(T) Encodable, in <-chan ingestpipeline.Item[T], log *logrus.Entry) *worker[T] {
	return &worker[T]{
		id:           id,
		addr:         addr,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		encode:       encode,
		in:           in,
		log:          log.WithField("ilp_worker", id),
		err:          make(chan *ingestpipeline.PipelineError, 1),
	}
}

// run drains in until it closes, batching and flushing along the way, then
// performs a final flush of any partial batch before returning. The
// connection is established lazily on first flush so an idle worker never
// opens a socket.
func (w *worker[T]) run() {
	var conn net.Conn
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	batch := make([]ingestrecord.Envelope[T], 0, w.batchSize)

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		c, perr := w.flushBatch(conn, batch)
		conn = c
		batch = batch[:0]
		if perr != nil {
			w.err <- perr
			return false
		}
		return true
	}

	for item := range w.in {
		if item.Err != nil {
			w.log.WithError(item.Err).Error("upstream pipeline error, aborting worker")
			if flush() {
				w.err <- item.Err
			}
			w.drain()
			close(w.err)
			return
		}
		batch = append(batch, item.Envelope)
		if len(batch) >= w.batchSize {
			if !flush() {
				w.drain()
				close(w.err)
				return
			}
		}
	}

	flush()
	close(w.err)
}

// drain discards the remainder of the input channel after a fatal error,
// so the upstream sink's send on a full buffered channel never blocks
// forever waiting for a worker that has given up.
func (w *worker[T]) drain() {
	for range w.in {
	}
}

func (w *worker[T]) connect() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", w.addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

func (w *worker[T]) encodeBatch(batch []ingestrecord.Envelope[T]) []byte {
	var out strings.Builder
	out.Grow(len(batch) * 160)
	for _, env := range batch {
		w.encode(env.Payload).WriteILPLine(&out)
		out.WriteByte('\n')
	}
	return []byte(out.String())
}

// flushBatch writes batch to conn, reconnecting and retrying with linear
// backoff up to maxRetries on a connect or write failure. It returns the (possibly
// reconnected) connection so the caller's conn variable stays current.
func (w *worker[T]) flushBatch(conn net.Conn, batch []ingestrecord.Envelope[T]) (net.Conn, *ingestpipeline.PipelineError) {
	payload := w.encodeBatch(batch)

	var attempt uint32
	for {
		var err error
		if conn == nil {
			conn, err = w.connect()
		}
		if err == nil {
			_, err = conn.Write(payload)
		}
		if err == nil {
			ingestmetrics.QuestdbIngestedRecordsTotal.Add(float64(len(batch)))
			ingestmetrics.QuestdbIlpBytesTotal.Add(float64(len(payload)))
			minReceived := batch[0].ReceivedAt
			for _, env := range batch[1:] {
				if env.ReceivedAt.Before(minReceived) {
					minReceived = env.ReceivedAt
				}
			}
			ingestmetrics.ObserveLatencyFromBatchMin(minReceived)
			return conn, nil
		}

		if attempt < w.maxRetries {
			attempt++
			w.log.WithError(err).WithField("attempt", attempt).Warn("QuestDB ILP flush failed, reconnecting and retrying")
			ingestmetrics.QuestdbIlpRetryTotal.Inc()
			if conn != nil {
				_ = conn.Close()
				conn = nil
			}
			time.Sleep(w.retryBackoff * time.Duration(attempt))
			continue
		}

		w.log.WithError(err).Error("QuestDB ILP flush failed, giving up")
		ingestmetrics.QuestdbIlpSinkErrorsTotal.Inc()
		if conn != nil {
			_ = conn.Close()
		}
		return nil, ingestpipeline.SinkError("ilp write failed: %v", err)
	}
}
