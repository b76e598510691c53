// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmbus

import "fmt"

// fakeConnector is an in-memory Connector for tests: it records calls in
// the order they were made so tests can assert on ordering (delete before
// add, activation after all profile writes).
type fakeConnector struct {
	profiles map[string]Profile
	nextUUID int
	Calls    []string

	CheckpointHandle string
	RolledBack       bool
	ExtendedBy       uint32
}

// NewFakeConnector returns an empty fake Connector.
func NewFakeConnector() *fakeConnector {
	return &fakeConnector{profiles: map[string]Profile{}}
}

func (f *fakeConnector) ListProfiles() ([]Profile, error) {
	out := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeConnector) ListActiveProfiles() ([]string, error) {
	var out []string
	for _, p := range f.profiles {
		if p.Active {
			out = append(out, p.UUID)
		}
	}
	return out, nil
}

func (f *fakeConnector) CreateProfile(p Profile) error {
	f.Calls = append(f.Calls, "create:"+p.Name)
	f.profiles[p.UUID] = p
	return nil
}

func (f *fakeConnector) UpdateProfile(p Profile) error {
	f.Calls = append(f.Calls, "update:"+p.Name)
	f.profiles[p.UUID] = p
	return nil
}

func (f *fakeConnector) DeleteProfile(uuid string) error {
	f.Calls = append(f.Calls, "delete:"+uuid)
	delete(f.profiles, uuid)
	return nil
}

func (f *fakeConnector) ActivateProfile(uuid string) error {
	f.Calls = append(f.Calls, "activate:"+uuid)
	p, ok := f.profiles[uuid]
	if !ok {
		return fmt.Errorf("no such profile %q", uuid)
	}
	p.Active = true
	f.profiles[uuid] = p
	return nil
}

func (f *fakeConnector) GenerateUUID() string {
	f.nextUUID++
	return fmt.Sprintf("fake-uuid-%d", f.nextUUID)
}

func (f *fakeConnector) CheckpointCreate(rollbackTimeoutSeconds uint32) (string, error) {
	f.CheckpointHandle = "fake-checkpoint"
	f.Calls = append(f.Calls, "checkpoint-create")
	return f.CheckpointHandle, nil
}

func (f *fakeConnector) CheckpointDestroy(handle string) error {
	f.Calls = append(f.Calls, "checkpoint-destroy")
	f.CheckpointHandle = ""
	return nil
}

func (f *fakeConnector) CheckpointRollback(handle string) error {
	f.Calls = append(f.Calls, "checkpoint-rollback")
	f.RolledBack = true
	return nil
}

func (f *fakeConnector) CheckpointExtend(handle string, addSeconds uint32) error {
	f.Calls = append(f.Calls, "checkpoint-extend")
	f.ExtendedBy += addSeconds
	return nil
}

// SeedProfile inserts a profile directly, bypassing Create/Update — used
// by tests to set up a pre-existing (possibly stale) profile.
func (f *fakeConnector) SeedProfile(p Profile) {
	f.profiles[p.UUID] = p
}
