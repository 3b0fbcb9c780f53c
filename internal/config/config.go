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

// Package config collects the command-line flags a pownode process is
// started with into a single validated Config, the way cmd/utils/flags.go
// collects klaytn's node flags before constructing a node.Node.
package config

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/powchain/node/internal/hashutil"
	"github.com/powchain/node/internal/node"
)

// Flag definitions, grouped the way cmd/utils/flags.go groups its flags.
var (
	ListenAddrFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "address this node listens for peers on",
		Value: "127.0.0.1:30900",
	}
	PeerFlag = cli.StringFlag{
		Name:  "peer",
		Usage: "address of an existing peer to fetch a snapshot from (full nodes only)",
	}
	PeersFlag = cli.StringSliceFlag{
		Name:  "peers",
		Usage: "addresses of peers to broadcast mined blocks and transactions to (repeatable)",
	}
	FlavorFlag = cli.StringFlag{
		Name:  "flavor",
		Usage: "node personality: genesis, full, or debug",
		Value: "genesis",
	}
	DifficultyFlag = cli.StringFlag{
		Name:  "difficulty",
		Usage: "proof-of-work difficulty mask: test or prod",
		Value: "test",
	}
	SnapshotTimeoutFlag = cli.DurationFlag{
		Name:  "snapshot-timeout",
		Usage: "how long a full node waits for its initial snapshot before giving up",
		Value: 10 * time.Second,
	}
)

// Flags is the full flag set cmd/pownode registers on its cli.App.
var Flags = []cli.Flag{
	ListenAddrFlag,
	PeerFlag,
	PeersFlag,
	FlavorFlag,
	DifficultyFlag,
	SnapshotTimeoutFlag,
}

// Config is the validated, parsed form of the process's flags.
type Config struct {
	ListenAddr      string
	PeerAddr        string
	Peers           []string
	Flavor          node.Flavor
	Difficulty      uint64
	SnapshotTimeout time.Duration
}

// FromContext validates and builds a Config from a populated cli.Context.
func FromContext(ctx *cli.Context) (Config, error) {
	cfg := Config{
		ListenAddr:      ctx.String(ListenAddrFlag.Name),
		PeerAddr:        ctx.String(PeerFlag.Name),
		Peers:           ctx.StringSlice(PeersFlag.Name),
		SnapshotTimeout: ctx.Duration(SnapshotTimeoutFlag.Name),
	}

	switch ctx.String(FlavorFlag.Name) {
	case "genesis":
		cfg.Flavor = node.FlavorGenesis
	case "full":
		cfg.Flavor = node.FlavorFull
		if cfg.PeerAddr == "" {
			return Config{}, fmt.Errorf("config: --peer is required for a full node")
		}
	case "debug":
		cfg.Flavor = node.FlavorDebug
	default:
		return Config{}, fmt.Errorf("config: unknown flavor %q", ctx.String(FlavorFlag.Name))
	}

	switch ctx.String(DifficultyFlag.Name) {
	case "test":
		cfg.Difficulty = hashutil.DifficultyTest
	case "prod":
		cfg.Difficulty = hashutil.DifficultyProd
	default:
		return Config{}, fmt.Errorf("config: unknown difficulty %q", ctx.String(DifficultyFlag.Name))
	}

	return cfg, nil
}
