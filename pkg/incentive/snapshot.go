// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"github.com/ethereum/go-ethereum/rlp"
	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/escrow"
	"gitlab.com/accumulatenetwork/incentive/pkg/ledger"
)

// Snapshot is the complete state of a protocol instance.
type Snapshot struct {
	Height   uint64
	Accounts []ledger.AccountState
	Burned   uint64
	Tasks    []*Task

	// Vault is only populated when the escrow is a [escrow.Vault].
	HasVault bool
	Vault    escrow.VaultState
}

func (s *Snapshot) MarshalBinary() ([]byte, error) {
	b, err := rlp.EncodeToBytes(s)
	if err != nil {
		return nil, errors.InternalError.WithFormat("encode snapshot: %w", err)
	}
	return b, nil
}

func (s *Snapshot) UnmarshalBinary(b []byte) error {
	err := rlp.DecodeBytes(b, s)
	if err != nil {
		return errors.BadRequest.WithFormat("decode snapshot: %w", err)
	}
	return nil
}

// Snapshot captures the state of the protocol. It waits for in-flight
// operations to finish and blocks new ones until it is done.
func (p *Protocol) Snapshot() *Snapshot {
	p.create.Lock()
	defer p.create.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	s := new(Snapshot)
	s.Height = p.clock.Height()
	s.Tasks = make([]*Task, len(p.tasks))
	for i, e := range p.tasks {
		e.mu.Lock()
		defer e.mu.Unlock()
		s.Tasks[i] = e.task.copy()
	}

	s.Accounts, s.Burned = p.ledger.Export()
	if v, ok := p.escrow.(*escrow.Vault); ok {
		s.HasVault = true
		s.Vault = v.Export()
	}
	return s
}

// Restore creates a protocol from a snapshot. The ledger and escrow of the
// options, if any, must be empty. A manual clock is moved to the snapshot's
// height.
func Restore(s *Snapshot, opts Options) (*Protocol, error) {
	p := New(opts)

	if c, ok := p.clock.(*clock.Manual); ok {
		c.Set(s.Height)
	}
	if p.clock.Height() < s.Height {
		return nil, errors.BadRequest.WithFormat("clock is at height %d, snapshot was taken at %d", p.clock.Height(), s.Height)
	}

	err := p.ledger.Import(s.Accounts, s.Burned)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("restore ledger: %w", err)
	}

	if s.HasVault {
		v, ok := p.escrow.(*escrow.Vault)
		if !ok {
			return nil, errors.BadRequest.WithFormat("snapshot has a vault but the escrow is a %T", p.escrow)
		}
		v.Import(s.Vault)
	}

	p.tasks = make([]*entry, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.ID != uint64(i) {
			return nil, errors.BadRequest.WithFormat("snapshot task %d has ID %d", i, t.ID)
		}
		if t.State > Finalized {
			return nil, errors.BadRequest.WithFormat("snapshot task %d has invalid state %d", i, t.State)
		}
		p.tasks[i] = &entry{task: *t.copy()}
	}
	return p, nil
}
