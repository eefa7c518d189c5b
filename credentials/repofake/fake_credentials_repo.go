package credentialsrepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-vehicle-market/credentials"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

// FakeCredentialsRepo keeps credentials in memory. It is also used as the
// non-persistent store when no durable backend is wanted.
type FakeCredentialsRepo struct {
	values map[credentials.Key]string
	writes int
	lock   sync.RWMutex
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{
		values: make(map[credentials.Key]string),
	}
}

func (r *FakeCredentialsRepo) Get(_ context.Context, key credentials.Key) (*string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *FakeCredentialsRepo) Upsert(_ context.Context, key credentials.Key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
	r.writes++
	return nil
}

func (r *FakeCredentialsRepo) Delete(_ context.Context, key credentials.Key) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.values[key]; ok {
		delete(r.values, key)
		r.writes++
	}
	return nil
}

// Snapshot returns a copy of every stored value.
func (r *FakeCredentialsRepo) Snapshot() map[credentials.Key]string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make(map[credentials.Key]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Writes counts the mutations that changed the stored values.
func (r *FakeCredentialsRepo) Writes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes
}
