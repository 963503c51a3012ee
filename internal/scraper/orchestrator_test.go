package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gpu-price-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singlePage(store models.Store, urls ...string) [][]models.RawRecord {
	page := make([]models.RawRecord, 0, len(urls))
	for _, u := range urls {
		page = append(page, rawRecord(store, "ASUS ROG RTX 4090 OC 24GB", "R$ 9.999,90", u))
	}
	return [][]models.RawRecord{page}
}

func factoryFor(extractors map[models.Store]*fakeExtractor) ExtractorFactory {
	return func(store models.Store) (Extractor, error) {
		ext, ok := extractors[store]
		if !ok {
			return nil, fmt.Errorf("no extractor registered for store %q", store)
		}
		return ext, nil
	}
}

func TestOrchestratorRun(t *testing.T) {
	extractors := map[models.Store]*fakeExtractor{
		models.StoreKabum: {
			store: models.StoreKabum,
			pages: singlePage(models.StoreKabum, "https://www.kabum.com.br/produto/1", "https://www.kabum.com.br/produto/2"),
		},
		models.StorePichau: {
			store: models.StorePichau,
			pages: singlePage(models.StorePichau, "https://www.pichau.com.br/p/1"),
		},
	}
	catalog := newFakeCatalog()
	pub := &recordingPublisher{}
	o := NewOrchestrator(testConfig(), catalog, pub, factoryFor(extractors))

	summary, err := o.Run(context.Background(), RunRequest{
		Stores: []models.Store{models.StoreKabum, models.StorePichau},
	})
	require.NoError(t, err)
	require.NotNil(t, summary)

	require.Len(t, summary.Stores, 2)
	// Results are sorted by store regardless of completion order.
	assert.Equal(t, models.StoreKabum, summary.Stores[0].Store)
	assert.Equal(t, models.StorePichau, summary.Stores[1].Store)
	assert.True(t, summary.Stores[0].Success)
	assert.True(t, summary.Stores[1].Success)

	assert.Equal(t, 3, summary.TotalFound)
	assert.Equal(t, 3, summary.TotalNew)
	assert.Equal(t, 3, catalog.productCount())

	started := pub.named(EventRunStarted)
	require.Len(t, started, 1)
	assert.Equal(t, summary.RunID, started[0].payload["run_id"])

	// One run record per store.
	assert.Len(t, catalog.recordedRuns(), 2)
}

// One store failing must not disturb its siblings.
func TestOrchestratorIsolatesStoreFailure(t *testing.T) {
	extractors := map[models.Store]*fakeExtractor{
		models.StoreKabum: {store: models.StoreKabum, failFetches: -1},
		models.StorePichau: {
			store: models.StorePichau,
			pages: singlePage(models.StorePichau, "https://www.pichau.com.br/p/1"),
		},
	}
	catalog := newFakeCatalog()
	o := NewOrchestrator(testConfig(), catalog, nil, factoryFor(extractors))

	summary, err := o.Run(context.Background(), RunRequest{
		Stores: []models.Store{models.StoreKabum, models.StorePichau},
	})
	require.NoError(t, err)

	require.Len(t, summary.Stores, 2)
	kabum, pichau := summary.Stores[0], summary.Stores[1]
	assert.False(t, kabum.Success)
	assert.Contains(t, kabum.Error, "max retries")
	assert.True(t, pichau.Success)

	assert.Equal(t, 1, catalog.productCount())

	runs := catalog.recordedRuns()
	require.Len(t, runs, 2)
	for _, run := range runs {
		if run.Store == models.StoreKabum {
			assert.False(t, run.Success)
			assert.NotEmpty(t, run.ErrorMessage)
		} else {
			assert.True(t, run.Success)
		}
		require.NotNil(t, run.CompletedAt)
	}
}

func TestOrchestratorFactoryError(t *testing.T) {
	catalog := newFakeCatalog()
	o := NewOrchestrator(testConfig(), catalog, nil, factoryFor(nil))

	summary, err := o.Run(context.Background(), RunRequest{Stores: []models.Store{models.StoreKabum}})
	require.NoError(t, err)

	require.Len(t, summary.Stores, 1)
	assert.False(t, summary.Stores[0].Success)
	assert.Contains(t, summary.Stores[0].Error, "no extractor registered")
	// The failed attempt is still recorded.
	assert.Len(t, catalog.recordedRuns(), 1)
}

func TestOrchestratorRecoversFromPanic(t *testing.T) {
	factory := func(models.Store) (Extractor, error) {
		panic("selector table corrupted")
	}
	catalog := newFakeCatalog()
	o := NewOrchestrator(testConfig(), catalog, nil, factory)

	summary, err := o.Run(context.Background(), RunRequest{Stores: []models.Store{models.StoreKabum}})
	require.NoError(t, err)

	require.Len(t, summary.Stores, 1)
	assert.False(t, summary.Stores[0].Success)
	assert.Contains(t, summary.Stores[0].Error, "panic")
}

func TestOrchestratorDefaultsToAllStores(t *testing.T) {
	extractors := make(map[models.Store]*fakeExtractor)
	for _, s := range models.AllStores() {
		extractors[s] = &fakeExtractor{store: s, pages: singlePage(s, "https://example.com/"+string(s))}
	}
	o := NewOrchestrator(testConfig(), newFakeCatalog(), nil, factoryFor(extractors))

	summary, err := o.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Len(t, summary.Stores, len(models.AllStores()))
}

func TestOrchestratorRejectsConcurrentRuns(t *testing.T) {
	block := make(chan struct{})
	ext := &fakeExtractor{
		store:     models.StoreKabum,
		openBlock: block,
		pages:     singlePage(models.StoreKabum, "https://www.kabum.com.br/produto/1"),
	}
	o := NewOrchestrator(testConfig(), newFakeCatalog(), nil, factoryFor(map[models.Store]*fakeExtractor{
		models.StoreKabum: ext,
	}))

	runID, err := o.Start(RunRequest{Stores: []models.Store{models.StoreKabum}})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.True(t, o.Running())

	_, err = o.Start(RunRequest{Stores: []models.Store{models.StoreKabum}})
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = o.Run(context.Background(), RunRequest{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(block)
	require.Eventually(t, func() bool { return !o.Running() }, 2*time.Second, 10*time.Millisecond)

	// A finished run frees the slot for the next one.
	_, err = o.Start(RunRequest{Stores: []models.Store{models.StoreKabum}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !o.Running() }, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestratorCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ext := &fakeExtractor{store: models.StoreKabum, openBlock: block}
	catalog := newFakeCatalog()
	o := NewOrchestrator(testConfig(), catalog, nil, factoryFor(map[models.Store]*fakeExtractor{
		models.StoreKabum: ext,
	}))

	_, err := o.Start(RunRequest{Stores: []models.Store{models.StoreKabum}})
	require.NoError(t, err)

	o.Cancel()
	require.Eventually(t, func() bool { return !o.Running() }, 2*time.Second, 10*time.Millisecond)

	runs := catalog.recordedRuns()
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
}
