package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/palette/internal/clients/civitai"
	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
)

type fakeRenderer struct {
	localWords map[string][]string
	hashes     map[string]string
}

func (f *fakeRenderer) Ping(ctx context.Context) bool { return true }
func (f *fakeRenderer) ObjectInfo(ctx context.Context) (map[string]interfaces.NodeSchema, error) {
	return nil, nil
}
func (f *fakeRenderer) Submit(ctx context.Context, graph interfaces.Graph) (string, error) {
	return "", nil
}
func (f *fakeRenderer) History(ctx context.Context, id string) (*interfaces.HistoryEntry, error) {
	return nil, nil
}
func (f *fakeRenderer) FetchImage(ctx context.Context, filename, subfolder, typ string) ([]byte, error) {
	return nil, nil
}
func (f *fakeRenderer) UploadImage(ctx context.Context, data []byte, filename string) (*interfaces.UploadResult, error) {
	return nil, nil
}
func (f *fakeRenderer) AdapterHash(ctx context.Context, filename string) (string, bool, error) {
	h, ok := f.hashes[filename]
	return h, ok, nil
}
func (f *fakeRenderer) AdapterTriggerWordsLocal(ctx context.Context, filename string) ([]string, bool, error) {
	words, ok := f.localWords[filename]
	return words, ok, nil
}

func TestLookupPrefersLocalPlugin(t *testing.T) {
	renderer := &fakeRenderer{localWords: map[string][]string{"styleA.safetensors": {"styleA trigger"}}}
	remote := civitai.NewClient(civitai.WithLogger(common.NewSilentLogger()))
	c := New(renderer, remote, common.NewSilentLogger())

	words := c.Lookup(context.Background(), "styleA.safetensors")
	require.Equal(t, []string{"styleA trigger"}, words, "expected local plugin words")
}

func TestLookupFallsBackToByHashWhenLocalEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trainedWords": ["remote trigger"]}`))
	}))
	defer server.Close()

	renderer := &fakeRenderer{hashes: map[string]string{"styleA.safetensors": "abc123"}}
	remote := civitai.NewClient(civitai.WithLogger(common.NewSilentLogger()), civitai.WithBaseURL(server.URL))
	c := New(renderer, remote, common.NewSilentLogger())

	words := c.Lookup(context.Background(), "styleA.safetensors")
	require.Equal(t, []string{"remote trigger"}, words, "expected remote by-hash words")
}

func TestLookupCachesDefinitiveEmptyResult(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	renderer := &fakeRenderer{hashes: map[string]string{"styleA.safetensors": "abc123"}}
	remote := civitai.NewClient(civitai.WithLogger(common.NewSilentLogger()), civitai.WithBaseURL(server.URL))
	c := New(renderer, remote, common.NewSilentLogger())

	first := c.Lookup(context.Background(), "styleA.safetensors")
	second := c.Lookup(context.Background(), "styleA.safetensors")
	require.Nil(t, first)
	require.Nil(t, second)
	require.Equal(t, 1, calls, "expected the second lookup to be served from cache")
}

func TestLookupDoesNotCacheTransientFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	renderer := &fakeRenderer{hashes: map[string]string{"styleA.safetensors": "abc123"}}
	remote := civitai.NewClient(civitai.WithLogger(common.NewSilentLogger()), civitai.WithBaseURL(server.URL))
	c := New(renderer, remote, common.NewSilentLogger())

	c.Lookup(context.Background(), "styleA.safetensors")
	callsAfterFirst := calls
	c.Lookup(context.Background(), "styleA.safetensors")
	require.Greaterf(t, calls, callsAfterFirst, "expected a retry on second lookup after transient failure, calls=%d then %d", callsAfterFirst, calls)
}
