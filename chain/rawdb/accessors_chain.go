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

package rawdb

import (
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/log"
	"github.com/provotum/node/types"
)

// ReadDatabaseVersion retrieves the version number of the database.
func ReadDatabaseVersion(db DatabaseReader) uint64 {
	var version uint64

	enc, _ := db.Get(databaseVersionKey)
	rlp.DecodeBytes(enc, &version)

	return version
}

// WriteDatabaseVersion stores the version number of the database.
func WriteDatabaseVersion(db DatabaseWriter, version uint64) {
	enc, _ := rlp.EncodeToBytes(version)
	if err := db.Put(databaseVersionKey, enc); err != nil {
		log.Fatal("Failed to store the database version", zap.Error(err))
	}
}

// ReadGenesisHash retrieves the hash of the genesis block the database was
// initialised with.
func ReadGenesisHash(db DatabaseReader) crypto.Hash {
	data, _ := db.Get(genesisKey)
	if len(data) == 0 {
		return crypto.Hash{}
	}
	return crypto.BytesToHash(data)
}

// WriteGenesisHash stores the hash of the genesis block.
func WriteGenesisHash(db DatabaseWriter, hash crypto.Hash) {
	if err := db.Put(genesisKey, hash.Bytes()); err != nil {
		log.Fatal("Failed to store genesis hash", zap.Error(err))
	}
}

// ReadHeadBlockHash retrieves the hash of the current canonical head block.
func ReadHeadBlockHash(db DatabaseReader) crypto.Hash {
	data, _ := db.Get(headBlockKey)
	if len(data) == 0 {
		return crypto.Hash{}
	}
	return crypto.BytesToHash(data)
}

// WriteHeadBlockHash stores the head block's hash.
func WriteHeadBlockHash(db DatabaseWriter, hash crypto.Hash) {
	if err := db.Put(headBlockKey, hash.Bytes()); err != nil {
		log.Fatal("Failed to store last block's hash", zap.Error(err))
	}
}

// ReadChainLength retrieves the number of blocks in the canonical chain,
// genesis included.
func ReadChainLength(db DatabaseReader) uint64 {
	var length uint64

	enc, _ := db.Get(chainLengthKey)
	if len(enc) == 0 {
		return 0
	}
	if err := rlp.DecodeBytes(enc, &length); err != nil {
		log.Error("Invalid chain length RLP", zap.Error(err))
		return 0
	}
	return length
}

// WriteChainLength stores the canonical chain length.
func WriteChainLength(db DatabaseWriter, length uint64) {
	enc, _ := rlp.EncodeToBytes(length)
	if err := db.Put(chainLengthKey, enc); err != nil {
		log.Fatal("Failed to store chain length", zap.Error(err))
	}
}

// ReadCanonicalHash retrieves the hash assigned to a canonical block number.
func ReadCanonicalHash(db DatabaseReader, number uint64) crypto.Hash {
	data, _ := db.Get(canonicalKey(number))
	if len(data) == 0 {
		return crypto.Hash{}
	}
	return crypto.BytesToHash(data)
}

// WriteCanonicalHash stores the hash assigned to a canonical block number.
func WriteCanonicalHash(db DatabaseWriter, hash crypto.Hash, number uint64) {
	if err := db.Put(canonicalKey(number), hash.Bytes()); err != nil {
		log.Fatal("Failed to store number to hash mapping", zap.Error(err))
	}
}

// DeleteCanonicalHash removes the number to hash canonical mapping.
func DeleteCanonicalHash(db DatabaseDeleter, number uint64) {
	db.Delete(canonicalKey(number))
}

// ReadBlock retrieves an entire block corresponding to the hash. Returns nil
// if the block is absent or its encoding is damaged.
func ReadBlock(db DatabaseReader, hash crypto.Hash) *types.Block {
	data, _ := db.Get(blockKey(hash))
	if len(data) == 0 {
		return nil
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(data, block); err != nil {
		log.Error("Invalid block RLP", zap.String("hash", hash.String()), zap.Error(err))
		return nil
	}
	return block
}

// WriteBlock serialises a block into the database keyed by its hash.
func WriteBlock(db DatabaseWriter, block *types.Block) {
	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		log.Fatal("Failed to RLP encode block", zap.Error(err))
	}
	if err := db.Put(blockKey(block.Hash()), data); err != nil {
		log.Fatal("Failed to store block", zap.Error(err))
	}
}

// DeleteBlock removes the block keyed by its hash.
func DeleteBlock(db DatabaseDeleter, hash crypto.Hash) {
	db.Delete(blockKey(hash))
}
