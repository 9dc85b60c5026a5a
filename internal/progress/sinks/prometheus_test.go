package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/refhq/sourcescout/internal/progress"
)

func evt(stage progress.Stage, runID string) progress.Event {
	e := progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: stage}
	if stage == progress.StageFetchDone || stage == progress.StageTargetDone {
		e.Site = "prom-sink-test.example"
	}
	if stage == progress.StageFetchDone {
		e.StatusClass = progress.Status2xx
	}
	return e
}

func TestPrometheusSinkTracksRunLifecycle(t *testing.T) {
	sink := NewPrometheusSink()
	ctx := context.Background()

	before := testutil.ToFloat64(sweepsRunning)

	done := evt(progress.StageRunDone, "lifecycle-run")
	done.Dur = 3 * time.Second
	require.NoError(t, sink.Consume(ctx, []progress.Event{
		evt(progress.StageRunStart, "lifecycle-run"),
	}))
	require.Equal(t, before+1, testutil.ToFloat64(sweepsRunning))

	require.NoError(t, sink.Consume(ctx, []progress.Event{done}))
	require.Equal(t, before, testutil.ToFloat64(sweepsRunning))

	// A replayed completion for the same run must not push the gauge negative.
	require.NoError(t, sink.Consume(ctx, []progress.Event{done}))
	require.Equal(t, before, testutil.ToFloat64(sweepsRunning))
}

func TestPrometheusSinkCountsFetches(t *testing.T) {
	sink := NewPrometheusSink()
	ctx := context.Background()

	fetches := walkFetches.WithLabelValues("prom-sink-test.example", "2xx")
	bytesCtr := walkBytes.WithLabelValues("prom-sink-test.example")
	beforeFetches := testutil.ToFloat64(fetches)
	beforeBytes := testutil.ToFloat64(bytesCtr)

	e := evt(progress.StageFetchDone, "fetch-run")
	e.Bytes = 4096
	e.Dur = 120 * time.Millisecond
	require.NoError(t, sink.Consume(ctx, []progress.Event{e, e}))

	require.Equal(t, beforeFetches+2, testutil.ToFloat64(fetches))
	require.Equal(t, beforeBytes+8192, testutil.ToFloat64(bytesCtr))
}

func TestPrometheusSinkCountsTargets(t *testing.T) {
	sink := NewPrometheusSink()
	ctx := context.Background()

	ctr := targetsProcessed.WithLabelValues("prom-sink-test.example")
	before := testutil.ToFloat64(ctr)

	require.NoError(t, sink.Consume(ctx, []progress.Event{
		evt(progress.StageTargetDone, "target-run"),
	}))
	require.Equal(t, before+1, testutil.ToFloat64(ctr))
}
