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

package quota

import (
	"context"
	"fmt"

	"github.com/canopyledger/canopy/errors"
)

// ErrNoTokens is returned when a spec cannot supply the requested tokens.
var ErrNoTokens = errors.New(errors.ResourceExhausted, "quota: insufficient tokens")

// Group is the scope of a token.
type Group int

const (
	// Global tokens are shared by every queue the coordinator serves.
	Global Group = iota
	// Queue tokens belong to a single queue.
	Queue
)

func (g Group) String() string {
	switch g {
	case Global:
		return "global"
	case Queue:
		return "queue"
	}
	return fmt.Sprintf("Group(%d)", int(g))
}

// Kind is the purpose of a token.
type Kind int

const (
	// Prove tokens admit a proof job to the prover.
	Prove Kind = iota
	// Submit tokens admit an instruction into a commit transaction.
	Submit
)

func (k Kind) String() string {
	switch k {
	case Prove:
		return "prove"
	case Submit:
		return "submit"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Spec names a token bucket.
type Spec struct {
	Group
	Kind
	// QueueID identifies the queue for Queue specs and is ignored otherwise.
	QueueID string
}

// Name returns "global/<kind>" or "queues/<id>/<kind>".
func (s Spec) Name() string {
	if s.Group == Global {
		return fmt.Sprintf("global/%v", s.Kind)
	}
	return fmt.Sprintf("queues/%s/%v", s.QueueID, s.Kind)
}

func (s Spec) String() string { return s.Name() }

// Specs returns the global and per-queue specs of the given kind.
func Specs(queueID string, k Kind) []Spec {
	return []Spec{{Group: Global, Kind: k}, {Group: Queue, Kind: k, QueueID: queueID}}
}

// Manager hands out tokens.
type Manager interface {
	// GetTokens acquires numTokens from every spec, or from none of them.
	GetTokens(ctx context.Context, numTokens int, specs []Spec) error
	// PutTokens returns numTokens to every spec.
	PutTokens(ctx context.Context, numTokens int, specs []Spec) error
	// ResetQuota refills every spec to its capacity.
	ResetQuota(ctx context.Context, specs []Spec) error
}

func validate(numTokens int, specs []Spec) error {
	if numTokens <= 0 {
		return errors.Errorf(errors.InvalidArgument, "quota: invalid numTokens %d (>0 required)", numTokens)
	}
	return validateSpecs(specs)
}

func validateSpecs(specs []Spec) error {
	for _, s := range specs {
		if s.Group == Queue && s.QueueID == "" {
			return errors.Errorf(errors.InvalidArgument, "quota: queue spec %v without queue ID", s.Kind)
		}
	}
	return nil
}
