package memory

import (
	"fmt"
	"iter"
	"sync"
)

// #region field-struct
// Field is a fixed-capacity circular buffer of snapshots. Once full, every append
// overwrites the oldest entry.
type Field struct {
	mu    sync.RWMutex
	buf   []Snapshot
	head  int // index of the oldest entry
	count int
}

// #endregion field-struct

// #region constructor
// NewField allocates an empty field holding at most capacity snapshots.
func NewField(capacity int) (*Field, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrConfiguration, capacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds %d", ErrConfiguration, capacity, MaxCapacity)
	}
	return &Field{buf: make([]Snapshot, capacity)}, nil
}

// Restore rebuilds a field from snapshots ordered oldest first.
func Restore(capacity int, snaps []Snapshot) (*Field, error) {
	f, err := NewField(capacity)
	if err != nil {
		return nil, err
	}
	if len(snaps) > capacity {
		return nil, fmt.Errorf("%w: %d snapshots exceed capacity %d", ErrConfiguration, len(snaps), capacity)
	}
	for i, s := range snaps {
		f.buf[i] = s.clone()
	}
	f.count = len(snaps)
	return f, nil
}

// #endregion constructor

// #region append
// Append inserts s as the newest entry. When the field is full the oldest entry is
// overwritten and returned with ok=true.
func (f *Field) Append(s Snapshot) (evicted Snapshot, ok bool) {
	s = s.clone()

	f.mu.Lock()
	defer f.mu.Unlock()

	capacity := len(f.buf)
	if f.count < capacity {
		f.buf[(f.head+f.count)%capacity] = s
		f.count++
		return Snapshot{}, false
	}

	evicted = f.buf[f.head]
	f.buf[f.head] = s
	f.head = (f.head + 1) % capacity
	return evicted, true
}

// #endregion append

// #region read
// Snapshots yields the retained snapshots oldest first. Each iteration ranges over a
// copy taken when it starts, so it is safe to append from inside the loop.
func (f *Field) Snapshots() iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		for _, s := range f.copyOut() {
			if !yield(s.clone()) {
				return
			}
		}
	}
}

// Slice returns the retained snapshots oldest first as one consistent copy.
func (f *Field) Slice() []Snapshot {
	out := f.copyOut()
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}

// copyOut copies the ring in FIFO order. Aux maps are still shared with the buffer.
func (f *Field) copyOut() []Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Snapshot, f.count)
	capacity := len(f.buf)
	for i := 0; i < f.count; i++ {
		out[i] = f.buf[(f.head+i)%capacity]
	}
	return out
}

// Last returns the newest snapshot.
func (f *Field) Last() (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.count == 0 {
		return Snapshot{}, false
	}
	return f.buf[(f.head+f.count-1)%len(f.buf)].clone(), true
}

func (f *Field) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

func (f *Field) Cap() int {
	return len(f.buf)
}

// #endregion read

// #region clear
// Clear drops every retained snapshot. Capacity is unchanged.
func (f *Field) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	clear(f.buf)
	f.head = 0
	f.count = 0
}

// #endregion clear
