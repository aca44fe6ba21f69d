package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Block is one entry of an election's audit trail. Each block commits to the
// previous one, so rewriting history breaks every later hash.
type Block struct {
	Index     uint64   `json:"index"`
	Timestamp int64    `json:"timestamp"`
	Operation string   `json:"operation"`
	Actor     Identity `json:"actor"`
	Data      []byte   `json:"data"`
	PrevHash  []byte   `json:"prev_hash"`
	Hash      []byte   `json:"hash"`
}

// GenesisHash is the PrevHash of the first block.
var GenesisHash = make([]byte, 32)

func NewBlock(index uint64, timestamp int64, operation string, actor Identity, data []byte, prevHash []byte) *Block {
	block := &Block{
		Index:     index,
		Timestamp: timestamp,
		Operation: operation,
		Actor:     actor,
		Data:      data,
		PrevHash:  prevHash,
	}
	block.Hash = block.calculateHash()
	return block
}

func (b *Block) calculateHash() []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, b.Index)
	binary.Write(buffer, binary.BigEndian, b.Timestamp)
	binary.Write(buffer, binary.BigEndian, uint32(len(b.Operation)))
	buffer.WriteString(b.Operation)
	buffer.Write(b.Actor[:])
	binary.Write(buffer, binary.BigEndian, uint32(len(b.Data)))
	buffer.Write(b.Data)
	buffer.Write(b.PrevHash)

	hash := sha256.Sum256(buffer.Bytes())
	return hash[:]
}

// Validate checks the block's own hash.
func (b *Block) Validate() bool {
	return bytes.Equal(b.calculateHash(), b.Hash)
}

// ValidateChain checks hashes, links, indexes and timestamp order of an
// entire trail.
func ValidateChain(blocks []*Block) error {
	for i, current := range blocks {
		if !current.Validate() {
			return fmt.Errorf("block %d has invalid hash", i)
		}
		if current.Index != uint64(i) {
			return fmt.Errorf("block %d has invalid index %d", i, current.Index)
		}
		if i == 0 {
			if !bytes.Equal(current.PrevHash, GenesisHash) {
				return fmt.Errorf("block 0 does not link to genesis")
			}
			continue
		}

		previous := blocks[i-1]
		if !bytes.Equal(current.PrevHash, previous.Hash) {
			return fmt.Errorf("block %d has invalid previous hash link", i)
		}
		// Several operations may land in the same second.
		if current.Timestamp < previous.Timestamp {
			return fmt.Errorf("block %d has invalid timestamp", i)
		}
	}
	return nil
}
