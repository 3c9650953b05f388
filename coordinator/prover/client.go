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

package prover

import (
	"context"
	"net/http"
	"strings"

	"github.com/canopyledger/canopy/errors"
	"github.com/dghubble/sling"
	"k8s.io/klog/v2"
)

// StatusCode is the status a proof server reports.
type StatusCode string

const (
	StatusSuccess StatusCode = "success"
	StatusBusy    StatusCode = "busy"
	StatusFailed  StatusCode = "failed"
	StatusInvalid StatusCode = "invalid"
)

// ServerError is the body a proof server answers failures with.
type ServerError struct {
	Status  StatusCode `json:"status"`
	Message string     `json:"msg"`
}

// Client talks to a remote proof server: witnesses are POSTed as JSON to
// <base>/prove and the proof comes back in the response body.
type Client struct {
	base *sling.Sling
}

// NewClient returns a Client for the proof server at baseURL. A nil hc means
// http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	s := sling.New().Base(baseURL)
	if hc != nil {
		s = s.Client(hc)
	}
	return &Client{base: s}
}

// Prove implements Prover.
func (c *Client) Prove(ctx context.Context, w *Witness) (*Proof, error) {
	req, err := c.base.New().Post("prove").BodyJSON(w).Request()
	if err != nil {
		return nil, errors.Errorf(errors.InvalidArgument, "%s: building request: %v: %w", w, err, ErrInvalidWitness)
	}
	var (
		proof Proof
		fail  ServerError
	)
	resp, err := c.base.Do(req.WithContext(ctx), &proof, &fail)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Errorf(errors.DeadlineExceeded, "%s: %v: %w", w, err, ctx.Err())
		}
		return nil, errors.Errorf(errors.Unavailable, "%s: %v: %w", w, err, ErrUnavailable)
	}
	if code := resp.StatusCode; code < 200 || code > 299 {
		klog.V(1).Infof("%s: proof server answered %d %s: %s", w, code, fail.Status, fail.Message)
		return nil, statusError(w, code, fail)
	}
	if len(proof.Data) == 0 {
		return nil, errors.Errorf(errors.Unavailable, "%s: empty proof: %w", w, ErrUnavailable)
	}
	return &proof, nil
}

func statusError(w *Witness, code int, fail ServerError) error {
	if fail.Status == StatusInvalid || code == http.StatusBadRequest || code == http.StatusUnprocessableEntity {
		return errors.Errorf(errors.InvalidArgument, "%s: %d %s: %w", w, code, fail.Message, ErrInvalidWitness)
	}
	return errors.Errorf(errors.Unavailable, "%s: %d %s %s: %w", w, code, fail.Status, fail.Message, ErrUnavailable)
}
