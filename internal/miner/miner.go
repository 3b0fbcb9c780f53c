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

// Package miner implements the randomized proof-of-work search and the
// interruptible supervisor actor the node event loop drives: start a
// mining attempt against a candidate block, cancel it the moment a better
// tip arrives, never report a result for an attempt that's been superseded.
package miner

import (
	"crypto/rand"
	"errors"
	"math/big"

	uuid "github.com/hashicorp/go-uuid"

	"github.com/powchain/node/internal/block"
	"github.com/powchain/node/internal/hashutil"
	"github.com/powchain/node/internal/log"
)

// ErrMiningInterrupted is returned by InterruptableMine when the stop
// channel fires before a valid proof of work is found. The supervisor never
// propagates it outward; it is purely an internal signal.
var ErrMiningInterrupted = errors.New("miner: mining interrupted")

// pollInterval is how many hash attempts pass between non-blocking checks
// of the stop channel.
const pollInterval = 2048

var maxU128 = new(big.Int).Lsh(big.NewInt(1), 128)

func randomPoW() (*big.Int, error) {
	return rand.Int(rand.Reader, maxU128)
}

// Mine performs a single-shot search: draw a proof of work uniformly at
// random and return on the first hash that satisfies difficultyMask.
func Mine(content block.Content, difficultyMask uint64) (block.Block, error) {
	for {
		pow, err := randomPoW()
		if err != nil {
			return block.Block{}, err
		}
		candidate := block.Block{Content: content, ProofOfWork: pow}
		candidate.Hash = candidate.ComputeHash()
		if hashutil.CheckDifficulty(candidate.Hash, difficultyMask) {
			return candidate, nil
		}
	}
}

// InterruptableMine is Mine but polls stop non-blockingly every
// pollInterval attempts, returning ErrMiningInterrupted at the first poll
// after it's signalled. A proof of work found before that poll is returned
// as a success.
func InterruptableMine(content block.Content, difficultyMask uint64, stop <-chan struct{}) (block.Block, error) {
	attempts := 0
	for {
		pow, err := randomPoW()
		if err != nil {
			return block.Block{}, err
		}
		candidate := block.Block{Content: content, ProofOfWork: pow}
		candidate.Hash = candidate.ComputeHash()
		if hashutil.CheckDifficulty(candidate.Hash, difficultyMask) {
			return candidate, nil
		}
		attempts++
		if attempts%pollInterval == 0 {
			select {
			case <-stop:
				return block.Block{}, ErrMiningInterrupted
			default:
			}
		}
	}
}

// Supervisor runs on its own goroutine and maintains at most one running
// mining attempt at a time: a Start supersedes whatever attempt is in
// flight, stopping it and spawning a fresh one with its own private stop
// channel and its own private result channel, so a stale result can never be
// confused with the current attempt's. Modeled directly on the CpuAgent
// actor this codebase has always used for background mining.
type Supervisor struct {
	logger *log.Logger
	mask   uint64

	startCh   chan block.Content
	extStopCh chan struct{}
	resultCh  chan block.Block
	quit      chan struct{}
}

// NewSupervisor starts the supervisor goroutine immediately; it sits idle
// until the first Start.
func NewSupervisor(difficultyMask uint64) *Supervisor {
	s := &Supervisor{
		logger:    log.New("miner"),
		mask:      difficultyMask,
		startCh:   make(chan block.Content, 1),
		extStopCh: make(chan struct{}, 1),
		resultCh:  make(chan block.Block, 1),
		quit:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Start requests a mining attempt against content, cancelling whatever
// attempt is currently running.
func (s *Supervisor) Start(content block.Content) {
	select {
	case s.startCh <- content:
	default:
		select {
		case <-s.startCh:
		default:
		}
		s.startCh <- content
	}
}

// Stop cancels the currently running attempt, if any, without starting a
// new one.
func (s *Supervisor) Stop() {
	select {
	case s.extStopCh <- struct{}{}:
	default:
	}
}

// Results is the channel mined blocks are delivered on.
func (s *Supervisor) Results() <-chan block.Block {
	return s.resultCh
}

// Close stops the supervisor goroutine and any attempt it is running.
func (s *Supervisor) Close() {
	close(s.quit)
}

func (s *Supervisor) run() {
	var currentStop chan struct{}
	// currentResult is private to whichever attempt is currently running: a
	// fresh, 1-buffered channel is allocated per Start, same as currentStop.
	// A superseded attempt's buffered send still succeeds, but the channel
	// it lands on is no longer currentResult by then, so it's never read.
	var currentResult chan block.Block

	for {
		select {
		case content := <-s.startCh:
			if currentStop != nil {
				close(currentStop)
			}
			currentStop = make(chan struct{})
			currentResult = make(chan block.Block, 1)
			go s.attempt(content, currentStop, currentResult)

		case <-s.extStopCh:
			if currentStop != nil {
				close(currentStop)
				currentStop = nil
			}
			currentResult = nil

		case b := <-currentResult:
			s.logger.Info("sealed new block", "index", b.Content.Index, "hash", b.Hash.String())
			currentResult = nil
			select {
			case s.resultCh <- b:
			default:
			}

		case <-s.quit:
			if currentStop != nil {
				close(currentStop)
			}
			return
		}
	}
}

func (s *Supervisor) attempt(content block.Content, stop chan struct{}, result chan<- block.Block) {
	id, _ := uuid.GenerateUUID()
	b, err := InterruptableMine(content, s.mask, stop)
	if err != nil {
		s.logger.Debug("mining attempt interrupted", "attempt", id)
		return
	}
	// result is private and 1-buffered: this send never blocks, whether or
	// not run() is still listening on it as the current attempt.
	result <- b
}
