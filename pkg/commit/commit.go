// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package commit implements hash commitments to 256-bit secrets.
package commit

import (
	"crypto/rand"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Hash returns the Keccak-256 hash of the secret as a 32-byte big-endian
// word. This is the same as Solidity's keccak256(abi.encodePacked(uint256)).
func Hash(secret common.Hash) common.Hash {
	return crypto.Keccak256Hash(secret[:])
}

// SecretFromUint64 returns v as a secret word.
func SecretFromUint64(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

// RandomSecret returns a secret read from crypto/rand.
func RandomSecret() (common.Hash, error) {
	var secret common.Hash
	_, err := rand.Read(secret[:])
	if err != nil {
		return common.Hash{}, errors.InternalError.WithFormat("read random: %w", err)
	}
	return secret, nil
}

// Commitment is a published hash of a secret, and the secret once it has been
// revealed through the sanctioned step.
type Commitment struct {
	Hash     common.Hash
	Revealed bool
	Secret   common.Hash
}

// New returns an unrevealed commitment.
func New(hash common.Hash) Commitment {
	return Commitment{Hash: hash}
}

// IsZero returns true if nothing has been committed.
func (c *Commitment) IsZero() bool {
	return c.Hash == (common.Hash{})
}

// Matches returns true if the secret is the preimage of the commitment.
func (c *Commitment) Matches(secret common.Hash) bool {
	return !c.IsZero() && Hash(secret) == c.Hash
}

// Verify fails with RevealMismatch if the secret is not the preimage of the
// commitment.
func (c *Commitment) Verify(secret common.Hash) error {
	if c.IsZero() {
		return errors.WrongState.With("nothing has been committed")
	}
	if !c.Matches(secret) {
		return errors.RevealMismatch.WithFormat("hash of secret does not match commitment %x", c.Hash[:4])
	}
	return nil
}

// Reveal records the sanctioned reveal of the secret. It does not modify the
// commitment if the secret does not match.
func (c *Commitment) Reveal(secret common.Hash) error {
	if c.Revealed {
		return errors.WrongState.With("already revealed")
	}
	err := c.Verify(secret)
	if err != nil {
		return err
	}
	c.Revealed = true
	c.Secret = secret
	return nil
}

// CheckLeak examines a preimage that surfaced outside the sanctioned reveal.
// It returns a SecretLeaked error if the preimage opens a commitment that is
// still meant to be secret, RevealMismatch if it does not open the commitment,
// and WrongState if the commitment is empty or was already revealed.
func (c *Commitment) CheckLeak(preimage common.Hash) error {
	if c.IsZero() {
		return errors.WrongState.With("nothing has been committed")
	}
	if c.Revealed {
		return errors.WrongState.With("the secret has already been revealed")
	}
	if !c.Matches(preimage) {
		return errors.RevealMismatch.WithFormat("preimage does not open commitment %x", c.Hash[:4])
	}
	return errors.SecretLeaked.WithFormat("preimage of %x disclosed before its reveal", c.Hash[:4])
}
