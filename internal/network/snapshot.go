// Copyright 2024 The powchain Authors
// This file is part of the powchain library.
//
// The powchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powchain library. If not, see <http://www.gnu.org/licenses/>.

package network

import (
	"context"
	"net"

	"github.com/powchain/node/internal/chain"
)

// RequestSnapshot asks peerAddr for its chain tree and waits for the reply
// on a throwaway local listener, bounded by ctx. If ctx expires first, it
// returns ErrSnapshotTimeout rather than context.DeadlineExceeded directly,
// so callers can distinguish "peer never answered" from any other wiring
// mistake.
func RequestSnapshot(ctx context.Context, peerAddr string) (*chain.ChainTree, error) {
	replyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	defer replyLn.Close()

	peer, err := Dial(peerAddr)
	if err != nil {
		return nil, err
	}
	defer peer.Close()

	if err := peer.SendAskSnapshot(replyLn.Addr().String()); err != nil {
		return nil, err
	}

	type result struct {
		tree *chain.ChainTree
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		conn, err := replyLn.Accept()
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		defer conn.Close()
		tree, err := ReceiveOneSnapshot(conn)
		resultCh <- result{tree: tree, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.tree, res.err
	case <-ctx.Done():
		return nil, ErrSnapshotTimeout
	}
}
