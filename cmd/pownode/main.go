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

// Command pownode runs a single peer of the proof-of-work network: it
// mines, validates inbound blocks and transactions, and serves snapshots to
// joining peers. Grounded on cmd/kcn/main.go's cli.App entrypoint shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/powchain/node/internal/chain"
	"github.com/powchain/node/internal/config"
	"github.com/powchain/node/internal/log"
	"github.com/powchain/node/internal/network"
	"github.com/powchain/node/internal/node"
	"github.com/powchain/node/internal/txn"
)

func main() {
	app := cli.NewApp()
	app.Name = "pownode"
	app.Usage = "run a proof-of-work chain peer"
	app.Flags = config.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	logger := log.New("cmd")

	cfg, err := config.FromContext(cliCtx)
	if err != nil {
		return err
	}

	self, err := txn.NewUser()
	if err != nil {
		return err
	}

	var tree *chain.ChainTree
	switch cfg.Flavor {
	case node.FlavorGenesis, node.FlavorDebug:
		tree = chain.NewFromNothingness()
	case node.FlavorFull:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.SnapshotTimeout)
		defer cancel()
		tree, err = network.RequestSnapshot(ctx, cfg.PeerAddr)
		if err != nil {
			return err
		}
	}

	n := node.New(cfg.Flavor, cfg.Difficulty, self, tree)

	peers := append([]string{}, cfg.Peers...)
	if cfg.PeerAddr != "" {
		peers = append(peers, cfg.PeerAddr)
	}
	peerSet := network.NewPeerSet(peers...)
	n.SetBroadcaster(peerSet)
	n.SetSnapshotSender(peerSet)

	ln, err := network.Listen(cfg.ListenAddr, n)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Info("listening", "addr", ln.Addr().String(), "public_key", fmt.Sprintf("%x", self.Public.Bytes()))

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	n.Run(ctx)
	return nil
}
