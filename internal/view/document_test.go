package view

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTextHighlightsOnlyOnChange(t *testing.T) {
	d := NewDocument(DefaultLayout())

	assert.True(t, d.UpdateText(SuccessRate, "97"))
	assert.False(t, d.UpdateText(SuccessRate, "97"))
	assert.True(t, d.UpdateText(SuccessRate, "98"))

	f, ok := d.Field(SuccessRate)
	assert.True(t, ok)
	assert.Equal(t, "98", f.Text)
	assert.Equal(t, 2, f.Highlights)
	assert.True(t, f.Highlighted(f.ChangedAt, time.Second))
	assert.False(t, f.Highlighted(f.ChangedAt.Add(2*time.Second), time.Second))
}

func TestUnknownElementsAreIgnored(t *testing.T) {
	d := NewDocument(Layout{Fields: []string{SuccessRate}})

	assert.False(t, d.UpdateText("missing", "1"))
	d.SetProgress(CPUUsage, Progress{Width: 50})
	d.Rebuild(ExecutionsTable, func(add func(Row)) { add(Row{Key: "1"}) })

	assert.False(t, d.Has("missing"))
	assert.False(t, d.Has(CPUUsage))
	_, ok := d.Progress(CPUUsage)
	assert.False(t, ok)
	assert.Empty(t, d.Rows(ExecutionsTable))
}

func TestRebuildReplacesContents(t *testing.T) {
	d := NewDocument(DefaultLayout())

	d.Rebuild(PipelineList, func(add func(Row)) {
		add(Row{Key: "a"})
		add(Row{Key: "b"})
		add(Row{Key: "c"})
	})
	d.Rebuild(PipelineList, func(add func(Row)) {
		add(Row{Key: "d"})
	})

	rows := d.Rows(PipelineList)
	assert.Len(t, rows, 1)
	assert.Equal(t, "d", rows[0].Key)
}

func TestRebuildIsAtomicForReaders(t *testing.T) {
	d := NewDocument(DefaultLayout())
	const size = 50

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			n := len(d.Rows(ExecutionsTable))
			if n != 0 && n != size {
				t.Errorf("observed partially built table with %d rows", n)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		d.Rebuild(ExecutionsTable, func(add func(Row)) {
			for j := 0; j < size; j++ {
				add(Row{Key: "row"})
			}
		})
	}
	close(stop)
	wg.Wait()
}

func TestSnapshotIsACopy(t *testing.T) {
	d := NewDocument(DefaultLayout())
	d.UpdateText(Coverage, "88")
	d.SetProgress(DiskUsage, Progress{Width: 100, Text: "120%", Class: "bg-danger"})

	s := d.Snapshot()
	d.UpdateText(Coverage, "90")

	assert.Equal(t, "88", s.Fields[Coverage].Text)
	assert.Equal(t, "120%", s.Progress[DiskUsage].Text)
	assert.Contains(t, s.Containers, ExecutionsTable)
}

func TestFieldJSONAlwaysCarriesChangedAt(t *testing.T) {
	d := NewDocument(DefaultLayout())
	d.UpdateText(Coverage, "88")

	untouched, err := json.Marshal(d.Snapshot().Fields[BugsFound])
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"","highlights":0,"changedAt":"0001-01-01T00:00:00Z"}`, string(untouched))

	changed, _ := d.Field(Coverage)
	raw, err := json.Marshal(changed)
	require.NoError(t, err)
	var back Field
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.ChangedAt.Equal(changed.ChangedAt))
}
