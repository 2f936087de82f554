// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Checkpoint records the nightly phase's result so a subsequent
// invocation with the same checkpoint path and no usable start boundary
// can skip re-walking nightlies, mirroring the teacher's habit of dumping intermediate
// state as YAML for later inspection (`tools/ctl/ctl.go`'s debug dumps).
type Checkpoint struct {
	FirstSuccess time.Time `yaml:"first_success"`
	LastFailure  time.Time `yaml:"last_failure"`
	FromSha      string    `yaml:"from_sha"`
	ToSha        string    `yaml:"to_sha"`
}

// SaveCheckpoint writes c to path. Failures are non-fatal to the
// bisection (spec.md has no requirement that this succeed); callers
// should log and continue rather than abort a completed phase over it.
func SaveCheckpoint(path string, c Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating checkpoint file")
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	defer enc.Close()
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}
	return nil
}

// LoadCheckpoint reads a previously saved Checkpoint, reporting ok=false
// if path does not exist.
func LoadCheckpoint(path string) (c Checkpoint, ok bool, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, errors.Wrap(err, "opening checkpoint file")
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return Checkpoint{}, false, errors.Wrap(err, "decoding checkpoint")
	}
	return c, true, nil
}
