// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package journal

import "golang.org/x/exp/slices"

func sortBySeq(records []*Record) {
	slices.SortFunc(records, func(a, b *Record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return +1
		}
		return 0
	})
}
