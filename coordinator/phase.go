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

package coordinator

// Phase is the stage a queue's processing cycle is in. A cycle moves
// Idle -> Fetching -> ProofPending -> Reassembling -> Committing -> Idle;
// with streaming fetch the middle stages overlap and Phase reports the
// latest one entered.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseProofPending
	PhaseReassembling
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseProofPending:
		return "proof-pending"
	case PhaseReassembling:
		return "reassembling"
	case PhaseCommitting:
		return "committing"
	}
	return "unknown"
}
