package telemetry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/core"
	"github.com/aretw0/marginalia/pkg/doc"
	"github.com/aretw0/marginalia/pkg/editor"
	"github.com/aretw0/marginalia/pkg/telemetry"
	"github.com/aretw0/marginalia/pkg/track"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	m.FilteredTotal.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	// A second set on the same registry collides.
	assert.Panics(t, func() { telemetry.New(reg) })
}

func TestObserveGeneration(t *testing.T) {
	m := telemetry.New(nil)

	m.ObserveGeneration("autocomplete", assist.StatusApplied, 200*time.Millisecond)
	m.ObserveGeneration("autocomplete", assist.StatusDropped, time.Second)
	m.ObserveGeneration("image", assist.StatusFailed, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("autocomplete", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("autocomplete", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResultsTotal.WithLabelValues("autocomplete")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StaleResultsTotal.WithLabelValues("image")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.GenerationSeconds))
}

func TestObserveSnapshotDispatchSave(t *testing.T) {
	m := telemetry.New(nil)

	m.ObserveSnapshot(core.TriggerAIBefore)
	m.ObserveSnapshot(core.TriggerAIBefore)
	m.ObserveDispatch(true)
	m.ObserveDispatch(false)
	m.ObserveSave(nil)
	m.ObserveSave(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotsTotal.WithLabelValues("ai-before")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilteredTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutosavesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutosavesTotal.WithLabelValues("error")))
}

func TestPlugin(t *testing.T) {
	m := telemetry.New(nil)
	eng := track.New(track.WithEnabled(true))
	d := doc.MustNew(
		doc.Heading(1, doc.Text("Title")),
		doc.Paragraph(doc.Text("hello world")),
	)
	ed := editor.New(d, editor.WithPlugins(eng, m.Plugin()))

	for i, r := range "abc" {
		tr := ed.Begin()
		require.NoError(t, tr.InsertText(13+i, string(r)))
		ok, err := ed.Dispatch(tr)
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("user-edit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrackedChanges.WithLabelValues("insertion")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TrackedChanges.WithLabelValues("deletion")))
}
