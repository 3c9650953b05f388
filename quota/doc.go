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

// Package quota provides admission control for the coordinator.
//
// Before an instruction is added to a commit transaction, and before a proof
// job is dispatched, the coordinator acquires tokens for the corresponding
// Specs. Tokens exist globally and per queue; if any spec is out of tokens
// the request is denied with a ResourceExhausted error and the caller holds
// the work back until the next pass. Tokens taken for work that is later
// abandoned (a rejected submission, a drained proof) are returned with
// PutTokens.
//
// Noop admits everything. Memory keeps token buckets in process and refills
// them at a fixed rate measured by a clock.TimeSource.
package quota
