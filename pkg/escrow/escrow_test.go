// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package escrow

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

func TestVault(t *testing.T) {
	ctx := context.Background()
	giver := common.HexToAddress("0x01")
	solver := common.HexToAddress("0x02")

	v := NewVault()
	require.NoError(t, v.Fund(giver, 10))

	require.ErrorIs(t, v.Lock(ctx, 0, giver, 11), errors.InsufficientBalance)
	require.NoError(t, v.Lock(ctx, 0, giver, 7))
	require.ErrorIs(t, v.Lock(ctx, 0, giver, 1), errors.Conflict)
	require.Equal(t, uint64(3), v.Wallet(giver))
	require.Equal(t, uint64(7), v.Locked(0))

	paid, err := v.Release(ctx, 0, solver)
	require.NoError(t, err)
	require.Equal(t, uint64(7), paid)
	require.Equal(t, uint64(7), v.Wallet(solver))

	_, err = v.Release(ctx, 0, solver)
	require.ErrorIs(t, err, errors.NotFound)

	require.NoError(t, v.Lock(ctx, 1, giver, 3))
	require.NoError(t, v.Refund(ctx, 1))
	require.Equal(t, uint64(3), v.Wallet(giver))

	require.NoError(t, v.Lock(ctx, 2, giver, 3))
	burned, err := v.Burn(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(3), burned)
	require.Zero(t, v.Wallet(giver))

	w := NewVault()
	w.Import(v.Export())
	require.Equal(t, v.Export(), w.Export())
}
