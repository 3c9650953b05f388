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

package main

import (
	"context"
	"os"
	"time"

	"github.com/canopyledger/canopy/batched"
	"github.com/canopyledger/canopy/coordinator"
	"github.com/canopyledger/canopy/errors"
	"github.com/canopyledger/canopy/merkle"
	"github.com/canopyledger/canopy/merkle/hashers"
	"github.com/canopyledger/canopy/queue"
	"github.com/canopyledger/canopy/quota"
	"github.com/canopyledger/canopy/storage"
	"github.com/canopyledger/canopy/util/clock"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

// config is the layout of the file named by --tree_config.
type config struct {
	Coordinator coordinator.Config `yaml:"coordinator"`
	Accounts    []accountConfig    `yaml:"accounts"`
	Quota       quotaConfig        `yaml:"quota"`
	// Slots, if set, restricts submissions to a window of host slots.
	Slots *slotConfig `yaml:"slots"`
}

type accountConfig struct {
	ID string `yaml:"id"`
	// Type is "state" or "address".
	Type        string       `yaml:"type"`
	Strategy    string       `yaml:"strategy"`
	Height      uint32       `yaml:"height"`
	CanopyDepth uint32       `yaml:"canopy_depth"`
	RootHistory uint32       `yaml:"root_history"`
	Input       queue.Params `yaml:"input_queue"`
	Output      queue.Params `yaml:"output_queue"`
}

type quotaConfig struct {
	Global *quota.Bucket `yaml:"global"`
	Queue  *quota.Bucket `yaml:"queue"`
}

type slotConfig struct {
	GenesisUnix  int64         `yaml:"genesis_unix"`
	SlotDuration time.Duration `yaml:"slot_duration"`
	Window       clock.Window  `yaml:"window"`
}

// loadConfig reads and checks the YAML file at path. Coordinator settings
// missing from the file keep their defaults.
func loadConfig(path string) (*config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (*config, error) {
	cfg := &config{Coordinator: coordinator.DefaultConfig()}
	if err := yaml.UnmarshalStrict(b, cfg); err != nil {
		return nil, errors.Errorf(errors.InvalidArgument, "parsing config: %v", err)
	}
	if err := cfg.Coordinator.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, a := range cfg.Accounts {
		if a.ID == "" || seen[a.ID] {
			return nil, errors.Errorf(errors.InvalidArgument, "account id %q missing or repeated", a.ID)
		}
		seen[a.ID] = true
		if _, err := a.tree(); err != nil {
			return nil, errors.Errorf(errors.InvalidArgument, "account %s: %v", a.ID, err)
		}
	}
	if cfg.Slots != nil {
		if err := cfg.Slots.Window.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// tree returns the empty account a describes.
func (a accountConfig) tree() (*batched.Tree, error) {
	s := hashers.RFC6962SHA256
	if a.Strategy != "" {
		var err error
		if s, err = hashers.ParseStrategy(a.Strategy); err != nil {
			return nil, err
		}
	}
	p := batched.Params{
		Strategy: s,
		Tree:     merkle.TreeOptions{Height: a.Height, CanopyDepth: a.CanopyDepth, RootHistory: a.RootHistory},
		Input:    a.Input,
		Output:   a.Output,
	}
	switch a.Type {
	case "state":
		return batched.NewStateTree(p)
	case "address":
		return batched.NewAddressTree(p)
	}
	return nil, errors.Errorf(errors.InvalidArgument, "unknown account type %q", a.Type)
}

func (q quotaConfig) manager(ts clock.TimeSource) quota.Manager {
	limits := make(map[quota.Group]quota.Bucket)
	if q.Global != nil {
		limits[quota.Global] = *q.Global
	}
	if q.Queue != nil {
		limits[quota.Queue] = *q.Queue
	}
	if len(limits) == 0 {
		return quota.Noop()
	}
	return quota.NewMemory(ts, limits)
}

func (s *slotConfig) source(ts clock.TimeSource) (clock.SlotSource, error) {
	if s == nil {
		return clock.Unbounded{}, nil
	}
	return clock.NewSlotClock(ts, time.Unix(s.GenesisUnix, 0), s.SlotDuration, s.Window)
}

// createAccounts creates the configured accounts which the host lacks.
func createAccounts(ctx context.Context, host *storage.Host, accounts []accountConfig) error {
	for _, a := range accounts {
		t, err := a.tree()
		if err != nil {
			return err
		}
		err = host.CreateAccount(ctx, storage.AccountID(a.ID), t)
		switch {
		case errors.Is(err, storage.ErrAccountExists):
			klog.V(1).Infof("%s: account exists", a.ID)
		case err != nil:
			return err
		}
	}
	return nil
}

func flagError(name, value string) error {
	return errors.Errorf(errors.InvalidArgument, "--%s: unsupported value %q", name, value)
}
