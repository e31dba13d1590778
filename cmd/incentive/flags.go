// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/pflag"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

type AddressFlag struct {
	Value *common.Address
}

var _ pflag.Value = AddressFlag{}

func (f AddressFlag) Type() string   { return "address" }
func (f AddressFlag) String() string { return f.Value.Hex() }

func (f AddressFlag) Set(s string) error {
	a, err := parseAddress(s)
	if err != nil {
		return err
	}
	*f.Value = a
	return nil
}

type HashFlag struct {
	Value *common.Hash
}

var _ pflag.Value = HashFlag{}

func (f HashFlag) Type() string   { return "hash" }
func (f HashFlag) String() string { return f.Value.Hex() }

func (f HashFlag) Set(s string) error {
	h, err := parseHash(s)
	if err != nil {
		return err
	}
	*f.Value = h
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.BadRequest.WithFormat("%q is not an address", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, errors.BadRequest.WithFormat("%q is not a hash: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, errors.BadRequest.WithFormat("%q is %d bytes, not %d", s, len(b), common.HashLength)
	}
	return common.BytesToHash(b), nil
}

func parseUint(s, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.BadRequest.WithFormat("invalid %s %q", what, s)
	}
	return v, nil
}
