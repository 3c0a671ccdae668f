// Copyright © 2018 Kowala SEZC <info@kowala.tech>
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

package database

// IdealBatchSize is the size threshold at which pending batch writes are
// flushed to the underlying store.
const IdealBatchSize = 100 * 1024

// Reader wraps the Has and Get methods of a key/value store.
type Reader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// Writer wraps the Put and Delete methods of a key/value store.
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Batch is a write-only store that buffers changes until Write is called.
type Batch interface {
	Writer

	// ValueSize retrieves the amount of data queued for writing.
	ValueSize() int

	// Write flushes any accumulated data to the underlying store.
	Write() error

	// Reset resets the batch for reuse.
	Reset()
}

// Database is the chain's persistent key/value store.
type Database interface {
	Reader
	Writer

	NewBatch() Batch
	Close() error
}
