package history

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances one second per call so timestamps are distinct.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingPersister struct {
	mu    sync.Mutex
	saves [][]Entry
	err   error
}

func (p *recordingPersister) Persist(entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, entries)
	return p.err
}

func (p *recordingPersister) last() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saves) == 0 {
		return nil
	}
	return p.saves[len(p.saves)-1]
}

func TestInsertText(t *testing.T) {
	s := New(10, nil)
	e, err := s.Insert(KindText, "hello")
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, KindText, all[0].Kind)
	assert.Equal(t, "hello", all[0].Payload)
	assert.Equal(t, e, all[0])
}

func TestInsertDuplicateMovesToFront(t *testing.T) {
	clock := newFakeClock()
	s := New(10, nil, WithClock(clock.Now))

	first, _ := s.Insert(KindText, "hello")
	_, _ = s.Insert(KindText, "world")
	again, err := s.Insert(KindText, "hello")
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "hello", all[0].Payload)
	assert.Equal(t, "world", all[1].Payload)
	assert.Equal(t, first.ID, again.ID, "re-observation keeps the id")
	assert.True(t, again.CapturedAt.After(first.CapturedAt), "re-observation refreshes the timestamp")
}

func TestInsertSamePayloadDifferentKind(t *testing.T) {
	s := New(10, nil)
	_, _ = s.Insert(KindText, "data:image/png;base64,AAAA")
	_, _ = s.Insert(KindImage, "data:image/png;base64,AAAA")
	assert.Equal(t, 2, s.Len())
}

func TestCapacityEvictsTail(t *testing.T) {
	s := New(100, nil)
	for i := 0; i < 101; i++ {
		_, err := s.Insert(KindText, fmt.Sprintf("text-%d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Len(), 100)
	}

	all := s.All()
	assert.Len(t, all, 100)
	assert.Equal(t, "text-100", all[0].Payload)
	assert.Equal(t, "text-1", all[99].Payload)
	for _, e := range all {
		assert.NotEqual(t, "text-0", e.Payload)
	}
}

func TestIDsStrictlyIncrease(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(10, nil, WithClock(func() time.Time { return fixed }))

	a, _ := s.Insert(KindText, "a")
	b, _ := s.Insert(KindText, "b")
	c, _ := s.Insert(KindText, "c")
	assert.Equal(t, fixed.UnixMilli(), a.ID)
	assert.Less(t, a.ID, b.ID)
	assert.Less(t, b.ID, c.ID)
}

func TestLoadContinuesIDs(t *testing.T) {
	s := New(10, nil, WithClock(func() time.Time { return time.UnixMilli(5) }))
	s.Load([]Entry{{ID: 900, Kind: KindText, Payload: "old"}})

	e, _ := s.Insert(KindText, "new")
	assert.Equal(t, int64(901), e.ID)
}

func TestClear(t *testing.T) {
	p := &recordingPersister{}
	s := New(10, p)
	_, _ = s.Insert(KindText, "a")

	require.NoError(t, s.Clear())
	assert.Empty(t, s.All())
	assert.NotNil(t, p.last())
	assert.Empty(t, p.last())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	s := New(10, p)

	e, err := s.Insert(KindText, "a")
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "insert", pe.Op)
	assert.Equal(t, "a", e.Payload)
	assert.Equal(t, 1, s.Len())

	err = s.Clear()
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, s.Len())
}

func TestPersistReceivesFullList(t *testing.T) {
	p := &recordingPersister{}
	s := New(10, p)
	_, _ = s.Insert(KindText, "a")
	_, _ = s.Insert(KindText, "b")

	last := p.last()
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Payload)
	assert.Equal(t, "a", last[1].Payload)
}

func TestAllIsACopy(t *testing.T) {
	s := New(10, nil)
	_, _ = s.Insert(KindText, "a")
	all := s.All()
	all[0].Payload = "mutated"
	assert.Equal(t, "a", s.All()[0].Payload)
}

func TestGet(t *testing.T) {
	s := New(10, nil)
	e, _ := s.Insert(KindText, "a")

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = s.Get(e.ID + 1000)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestSearch(t *testing.T) {
	s := New(10, nil)
	_, _ = s.Insert(KindText, "Hello World")
	_, _ = s.Insert(KindImage, "data:image/png;base64,aGVsbG8=")
	_, _ = s.Insert(KindText, "goodbye")

	assert.Len(t, s.Search(""), 3)
	got := s.Search("  hello ")
	require.Len(t, got, 1)
	assert.Equal(t, "Hello World", got[0].Payload)
	assert.Empty(t, s.Search("missing"))
}

func TestSetCapacity(t *testing.T) {
	p := &recordingPersister{}
	s := New(10, p)
	for _, v := range []string{"a", "b", "c", "d"} {
		_, _ = s.Insert(KindText, v)
	}

	n, err := s.SetCapacity(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "d", all[0].Payload)
	assert.Equal(t, "c", all[1].Payload)
	assert.Len(t, p.last(), 2)

	_, err = s.SetCapacity(0)
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, s.Capacity())
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0, nil).Capacity())
	assert.Equal(t, DefaultCapacity, New(-3, nil).Capacity())
	assert.Equal(t, 7, New(7, nil).Capacity())
}

func TestConcurrentReadsDuringInserts(t *testing.T) {
	s := New(50, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = s.Insert(KindText, fmt.Sprintf("v%d", i%80))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				all := s.All()
				assert.LessOrEqual(t, len(all), 50)
				seen := make(map[string]bool, len(all))
				for _, e := range all {
					assert.False(t, seen[e.Payload], "duplicate payload %q", e.Payload)
					seen[e.Payload] = true
				}
			}
		}()
	}
	wg.Wait()
}

func TestKindParse(t *testing.T) {
	k, err := ParseKind("IMAGE")
	require.NoError(t, err)
	assert.Equal(t, KindImage, k)
	assert.Equal(t, "text", KindText.String())
	_, err = ParseKind("file")
	assert.Error(t, err)
	assert.False(t, Kind(0).Valid())
}
