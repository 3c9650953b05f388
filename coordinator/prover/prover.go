// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package prover is the coordinator's view of the proof backend: the
// witness it sends, the proof it gets back, an HTTP client for a remote
// proof server and a deterministic in-process prover for tests and local
// runs.
package prover

import (
	"bytes"
	"context"

	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
)

var (
	// ErrUnavailable is returned when the prover failed to produce a proof
	// for a reason that may go away on retry.
	ErrUnavailable = errors.New(errors.Unavailable, "prover: proof generation failed")
	// ErrInvalidWitness is returned for witnesses no proof can be produced
	// for. Retrying does not help.
	ErrInvalidWitness = errors.New(errors.InvalidArgument, "prover: invalid witness")
	// ErrDigestMismatch is returned by DigestVerifier for foreign proofs.
	ErrDigestMismatch = errors.New(errors.FailedPrecondition, "prover: proof does not commit to the public input")
)

// Prover turns a witness into a proof.
type Prover interface {
	Prove(ctx context.Context, w *Witness) (*Proof, error)
}

// Proof is a prover's answer for one witness.
type Proof struct {
	Data []byte `json:"proof"`
	// Millis is the time the prover spent, as reported by the prover.
	Millis int64 `json:"proofMs"`
}

// DigestVerifier accepts the proofs Local produces: the public input hash
// itself. It implements batched.Verifier.
type DigestVerifier struct{}

// Verify checks that proof spells out publicInput.
func (DigestVerifier) Verify(publicInput merkle.Hash, proof []byte) error {
	if !bytes.Equal(publicInput[:], proof) {
		return errors.Errorf(errors.FailedPrecondition, "public input %s: %w", publicInput.Short(), ErrDigestMismatch)
	}
	return nil
}
