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

package ingesthttp

import (
	"bufio"
	"io"
)

// readAll reads r to completion; a body capped by http.MaxBytesReader
// surfaces its limit as an error from Read, which propagates here.
func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// newLineScanner wraps r in a bufio.Scanner whose buffer is capped at
// maxLineBytes+1 so a line exceeding the cap fails with bufio.ErrTooLong
// from Scanner.Err() instead of growing unbounded.
func newLineScanner(r io.Reader, maxLineBytes int64) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	maxLen := int(maxLineBytes) + 1
	scanner.Buffer(make([]byte, 0, 64*1024), maxLen)
	return scanner
}
