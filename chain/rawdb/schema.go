// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package rawdb contains a collection of low level database accessors.
package rawdb

import (
	"encoding/binary"

	"github.com/provotum/node/crypto"
)

var (
	// databaseVersionKey tracks the current database version.
	databaseVersionKey = []byte("DatabaseVersion")

	// headBlockKey tracks the hash of the current chain head.
	headBlockKey = []byte("LastBlock")

	// genesisKey tracks the hash of the genesis block the database was
	// initialised with.
	genesisKey = []byte("GenesisHash")

	blockPrefix    = []byte("b") // blockPrefix + hash -> block body
	numberPrefix   = []byte("n") // numberPrefix + num (uint64 big endian) -> hash
	chainLengthKey = []byte("ChainLength")
)

// encodeBlockNumber encodes a block number as big endian uint64.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// blockKey = blockPrefix + hash
func blockKey(hash crypto.Hash) []byte {
	return append(blockPrefix, hash.Bytes()...)
}

// canonicalKey = numberPrefix + num (uint64 big endian)
func canonicalKey(number uint64) []byte {
	return append(numberPrefix, encodeBlockNumber(number)...)
}
