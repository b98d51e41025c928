package scrape_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coachranger/internal/domain"
	"coachranger/internal/monitoring"
	"coachranger/internal/scrape"
)

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]bool
	saved    map[string]*domain.Listing
	saveErr  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: make(map[string]bool),
		saved:    make(map[string]*domain.Listing),
		saveErr:  make(map[string]error),
	}
}

func (f *fakeStore) ExistsBySourceID(_ context.Context, sourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[sourceID], nil
}

func (f *fakeStore) SaveListing(_ context.Context, l *domain.Listing) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.saveErr[l.SourceID]; err != nil {
		return 0, err
	}
	f.saved[l.SourceID] = l
	f.existing[l.SourceID] = true
	return len(f.saved), nil
}

type fakeCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: make(map[string]bool)}
}

func (f *fakeCache) IsSeen(_ context.Context, sourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[sourceID], nil
}

func (f *fakeCache) MarkSeen(_ context.Context, sourceID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[sourceID] = true
	return nil
}

// fakeSite serves an index page plus detail pages and counts hits per path.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	fail    map[string]bool
	hits    map[string]int
	server  *httptest.Server
	indexed []string
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()

	site := &fakeSite{
		pages: make(map[string]string),
		fail:  make(map[string]bool),
		hits:  make(map[string]int),
	}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		failed := site.fail[r.URL.Path]
		page, ok := site.pages[r.URL.Path]
		site.mu.Unlock()

		if failed {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	}))
	t.Cleanup(site.server.Close)
	return site
}

func (f *fakeSite) addListing(name string) {
	f.indexed = append(f.indexed, name)
	f.pages["/forsale/"+name+".html"] = fmt.Sprintf(`<html><body>
		<h2><b>2009 Prevost Marathon H3-45</b></h2>
		<p>%s</p>
		<p>Asking $275,000 with 63,000 miles.</p>
		<img src="%s_1.jpg">
		<img src="%s_2.jpg">
	</body></html>`, longDescription, name, name)
}

// addBareListing registers a detail page with no qualifying photos.
func (f *fakeSite) addBareListing(name string) {
	f.indexed = append(f.indexed, name)
	f.pages["/forsale/"+name+".html"] = fmt.Sprintf(`<html><body>
		<h2><b>2015 Prevost Liberty</b></h2>
		<p>%s</p>
		<img src="sitelogo.jpg">
	</body></html>`, longDescription)
}

func (f *fakeSite) buildIndex() {
	var links string
	for _, name := range f.indexed {
		links += fmt.Sprintf(`<a href="%s.html">%s</a>`, name, name)
	}
	f.pages["/forsale/public_list_ads.php"] = "<html><body>" + links + "</body></html>"
}

func (f *fakeSite) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func newTestPipeline(t *testing.T, site *fakeSite, store scrape.Store, cache scrape.SeenCache, workers int) *scrape.Pipeline {
	t.Helper()

	site.buildIndex()
	fetcher := scrape.NewFetcher(5*time.Second, "")
	scanner := scrape.NewIndexScanner(fetcher, site.server.URL+"/forsale/public_list_ads.php", site.server.URL+"/forsale/")
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())

	return scrape.NewPipeline(scanner, fetcher, store, cache, metrics, zap.NewNop(), scrape.Options{
		Workers:       workers,
		MaxPhotos:     5,
		DetailBaseURL: site.server.URL + "/forsale/",
		SeenTTL:       time.Hour,
	})
}

func TestPipelineRun_CommitsDiscoveredListings(t *testing.T) {
	site := newFakeSite(t)
	site.addListing("2009PrevostMarathonPC1")
	site.addListing("2007PrevostFeatherlitePC2")
	store := newFakeStore()

	summary, err := newTestPipeline(t, site, store, nil, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 2, summary.Committed)
	assert.Equal(t, 0, summary.Failed)

	l := store.saved["2009prevostmarathonpc1"]
	require.NotNil(t, l)
	assert.Equal(t, 275000, l.Price)
	assert.Equal(t, 2009, l.Year)
	require.Len(t, l.Photos, 2)
	assert.True(t, l.Photos[0].IsPrimary)
	assert.False(t, l.Photos[1].IsPrimary)
}

func TestPipelineRun_IndexFetchFailureIsFatal(t *testing.T) {
	site := newFakeSite(t)
	site.addListing("2009PrevostMarathonPC1")
	site.fail["/forsale/public_list_ads.php"] = true
	store := newFakeStore()

	_, err := newTestPipeline(t, site, store, nil, 1).Run(context.Background())

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, store.saved, "a failed index fetch must produce zero writes")
}

func TestPipelineRun_DetailFailureDoesNotAffectSiblings(t *testing.T) {
	site := newFakeSite(t)
	site.addListing("2009PrevostMarathonPC1")
	site.addListing("2007PrevostFeatherlitePC2")
	site.fail["/forsale/2009PrevostMarathonPC1.html"] = true
	store := newFakeStore()

	summary, err := newTestPipeline(t, site, store, nil, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Committed)
	assert.Contains(t, store.saved, "2007prevostfeatherlitepc2")
	assert.NotContains(t, store.saved, "2009prevostmarathonpc1")
}

func TestPipelineRun_PhotoGate(t *testing.T) {
	site := newFakeSite(t)
	site.addBareListing("2015PrevostLibertyPC3")
	store := newFakeStore()

	summary, err := newTestPipeline(t, site, store, nil, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.DroppedNoPhotos)
	assert.Equal(t, 0, summary.Committed)
	assert.Empty(t, store.saved, "a listing without photos is never persisted")
}

func TestPipelineRun_CommitFailureIsolated(t *testing.T) {
	site := newFakeSite(t)
	site.addListing("2009PrevostMarathonPC1")
	site.addListing("2007PrevostFeatherlitePC2")
	store := newFakeStore()
	store.saveErr["2009prevostmarathonpc1"] = fmt.Errorf("tx aborted")

	summary, err := newTestPipeline(t, site, store, nil, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Committed)
	assert.NotContains(t, store.saved, "2009prevostmarathonpc1")
}

func TestPipelineRun_SecondRunShortCircuitsBeforeFetch(t *testing.T) {
	site := newFakeSite(t)
	site.addListing("2009PrevostMarathonPC1")
	store := newFakeStore()
	pipeline := newTestPipeline(t, site, store, nil, 1)

	first, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Committed)
	require.Equal(t, 1, site.hitCount("/forsale/2009PrevostMarathonPC1.html"))

	second, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Committed)
	assert.Equal(t, 1, site.hitCount("/forsale/2009PrevostMarathonPC1.html"),
		"a known sourceId must not be fetched again")
	assert.Len(t, store.saved, 1, "no duplicate rows on re-run")
}

func TestPipelineRun_SeenCacheSkipsStoreCheck(t *testing.T) {
	site := newFakeSite(t)
	site.addListing("2009PrevostMarathonPC1")
	store := newFakeStore()
	cache := newFakeCache()
	require.NoError(t, cache.MarkSeen(context.Background(), "2009prevostmarathonpc1", time.Hour))

	summary, err := newTestPipeline(t, site, store, cache, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, site.hitCount("/forsale/2009PrevostMarathonPC1.html"))
}

func TestPipelineRun_PoolOfOneIsDeterministic(t *testing.T) {
	site := newFakeSite(t)
	for i := 0; i < 6; i++ {
		site.addListing(fmt.Sprintf("2009PrevostMarathonPD%d", i))
	}
	store := newFakeStore()

	summary, err := newTestPipeline(t, site, store, nil, 1).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Discovered)
	assert.Equal(t, 6, summary.Committed)
	assert.Len(t, store.saved, 6)
}
