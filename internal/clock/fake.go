package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks fire synchronously from
// Advance, in due-time order, on the goroutine that calls Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	entries []*fakeEntry
}

type fakeEntry struct {
	fake     *Fake
	seq      uint64
	due      time.Time
	interval time.Duration
	fn       func()
	stopped  bool
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(interval time.Duration, fn func()) Handle {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return f.add(interval, interval, fn)
}

func (f *Fake) After(delay time.Duration, fn func()) Handle {
	return f.add(delay, 0, fn)
}

func (f *Fake) add(delay, interval time.Duration, fn func()) *fakeEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	entry := &fakeEntry{
		fake:     f,
		seq:      f.seq,
		due:      f.now.Add(delay),
		interval: interval,
		fn:       fn,
	}
	f.entries = append(f.entries, entry)
	return entry
}

// Pending returns the number of live scheduled callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, entry := range f.entries {
		if !entry.stopped {
			count++
		}
	}
	return count
}

// Advance moves the clock forward by d, firing every callback that becomes
// due along the way. Periodic callbacks fire once per elapsed interval.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		entry := f.nextDue(target)
		if entry == nil {
			break
		}
		entry.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

func (f *Fake) nextDue(target time.Time) *fakeEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := f.entries[:0]
	for _, entry := range f.entries {
		if !entry.stopped {
			live = append(live, entry)
		}
	}
	f.entries = live
	if len(f.entries) == 0 {
		return nil
	}

	sort.SliceStable(f.entries, func(i, j int) bool {
		if f.entries[i].due.Equal(f.entries[j].due) {
			return f.entries[i].seq < f.entries[j].seq
		}
		return f.entries[i].due.Before(f.entries[j].due)
	})
	entry := f.entries[0]
	if entry.due.After(target) {
		return nil
	}

	f.now = entry.due
	if entry.interval > 0 {
		entry.due = entry.due.Add(entry.interval)
	} else {
		entry.stopped = true
	}
	return entry
}

func (e *fakeEntry) Stop() {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	e.stopped = true
}
