package model

import (
	"github.com/libsv/go-p2p/blockchain"
	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/wire"
)

// CalcMerkleRoot computes the merkle root of the given transactions. The
// tree itself comes from the shared go-p2p builder, which stores it as a
// linear array with the root in the last entry and pairs a left-over node
// on an odd level with itself, matching the consensus rules. The known
// merkle mutation that duplicate-pairing enables is rejected separately by
// the duplicate-transaction check in CheckBlockSanity.
func CalcMerkleRoot(transactions []*wire.MsgTx) chainhash.Hash {
	hashes := make([][]byte, len(transactions))
	for i, tx := range transactions {
		hash := tx.TxHash()
		hashes[i] = hash[:]
	}

	merkles := blockchain.BuildMerkleTreeStore(hashes)

	var root chainhash.Hash
	copy(root[:], merkles[len(merkles)-1])

	return root
}
