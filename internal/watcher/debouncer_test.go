package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEventPassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30*time.Millisecond, quietLogger())
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "/lab/a.txt", Operation: OpCreate, Timestamp: time.Now()})

	// Then: it comes out after the window
	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/lab/a.txt", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_RapidWritesCoalesce(t *testing.T) {
	d := NewDebouncer(60*time.Millisecond, quietLogger())
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/lab/a.txt", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(5 * time.Millisecond)
	}

	batch := receive(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		want  Operation
		empty bool
	}{
		{name: "create then modify", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "create then delete", ops: []Operation{OpCreate, OpDelete}, empty: true},
		{name: "modify then delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "delete then create", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given
			d := NewDebouncer(20*time.Millisecond, quietLogger())
			defer d.Stop()

			// When
			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/x.txt", Operation: op, Timestamp: time.Now()})
			}

			// Then
			if tt.empty {
				time.Sleep(80 * time.Millisecond)
				assert.Zero(t, d.Pending())
				select {
				case batch := <-d.Output():
					assert.Empty(t, batch)
				default:
				}
				return
			}
			batch := receive(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_BatchIsSortedByPath(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, quietLogger())
	defer d.Stop()

	d.Add(FileEvent{Path: "/c.txt", Operation: OpDelete})
	d.Add(FileEvent{Path: "/a.txt", Operation: OpCreate})
	d.Add(FileEvent{Path: "/b.txt", Operation: OpModify})

	batch := receive(t, d)
	require.Len(t, batch, 3)
	assert.Equal(t, "/a.txt", batch[0].Path)
	assert.Equal(t, "/b.txt", batch[1].Path)
	assert.Equal(t, "/c.txt", batch[2].Path)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, quietLogger())
	d.Add(FileEvent{Path: "/a.txt", Operation: OpCreate})

	d.Stop()
	d.Stop()

	_, ok := <-d.Output()
	assert.False(t, ok)
}
