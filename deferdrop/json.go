package deferdrop

import (
	"encoding/json"
	"runtime"

	"github.com/pkg/errors"
)

// MarshalJSON encodes the held value as if it were not wrapped.
func (d *Deferred[T]) MarshalJSON() ([]byte, error) {
	if !d.Held() {
		return nil, errors.WithStack(ErrConsumed)
	}
	return json.Marshal(d.c.value)
}

// UnmarshalJSON decodes a T and takes ownership of it. A value already held
// is released first. Decoding keeps the wrapper's bin, dispose func and
// auto-drop registration.
func (d *Deferred[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	next := &cell[T]{value: v}
	if d.c != nil {
		next.dispose, next.bin = d.c.dispose, d.c.bin
	}
	auto := d.auto.Load()
	d.Drop()
	d.c = next
	if auto {
		d.cleanup = runtime.AddCleanup(d, (*cell[T]).throwAway, next)
		d.auto.Store(true)
	}
	return nil
}
