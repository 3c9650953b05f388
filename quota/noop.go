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

import "context"

type noopManager struct{}

// Noop returns a Manager which admits every well-formed request.
func Noop() Manager { return noopManager{} }

func (noopManager) GetTokens(_ context.Context, numTokens int, specs []Spec) error {
	return validate(numTokens, specs)
}

func (noopManager) PutTokens(_ context.Context, numTokens int, specs []Spec) error {
	return validate(numTokens, specs)
}

func (noopManager) ResetQuota(_ context.Context, specs []Spec) error {
	return validateSpecs(specs)
}
