// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	err := WrongState.WithFormat("task %d is %v", 1, "open")
	require.Equal(t, WrongState, Code(err))
	require.Equal(t, "task 1 is open", err.Error())
	require.True(t, Is(err, WrongState))
	require.False(t, Is(err, Unauthorized))

	// A bare status is its own code
	require.Equal(t, RevealMismatch, Code(RevealMismatch))

	// Foreign errors have no code
	require.Equal(t, Status(0), Code(io.EOF))
}

func TestWrapKeepsCode(t *testing.T) {
	inner := InsufficientBalance.With("balance 0, need 10")
	outer := UnknownError.WithFormat("bond: %w", inner)
	require.Equal(t, InsufficientBalance, Code(outer))
	require.ErrorIs(t, outer, InsufficientBalance)

	wrapped := UnknownError.Wrap(fmt.Errorf("load: %w", inner))
	require.Equal(t, InsufficientBalance, Code(wrapped))

	require.NoError(t, UnknownError.Wrap(nil))
}

func TestPrintCallStack(t *testing.T) {
	old := trackLocation
	trackLocation = true
	t.Cleanup(func() { trackLocation = old })

	err := NotFound.With("task 7")
	require.NotEmpty(t, err.CallStack)
	require.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
	require.Equal(t, "task 7", fmt.Sprintf("%v", err))
}
