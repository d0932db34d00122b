package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/palette/internal/interfaces"
)

func TestPingReportsUnreachableOnConnectFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nothing listens here
	require.False(t, c.Ping(context.Background()), "expected Ping to report false for an unreachable host")
}

func TestPingReportsTrueOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.True(t, c.Ping(context.Background()), "expected Ping to report true for a 200 response")
}

func TestSubmitParsesPromptID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/prompt", r.URL.Path)
		var body map[string]interfaces.Graph
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, ok := body["prompt"]
		require.True(t, ok, "expected request body to wrap graph under \"prompt\"")
		json.NewEncoder(w).Encode(map[string]string{"prompt_id": "abc-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.Submit(context.Background(), interfaces.Graph{
		"1": interfaces.GraphNode{ClassType: "CheckpointLoaderSimple", Inputs: map[string]interface{}{"ckpt_name": "m"}},
	})
	require.NoError(t, err)
	require.Equal(t, "abc-123", id)
}

func TestSubmitNon2xxIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("graph invalid"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Submit(context.Background(), interfaces.Graph{})
	require.Error(t, err, "expected an error for a 500 response")
	apiErr, ok := err.(*APIError)
	require.Truef(t, ok, "expected *APIError, got %T", err)
	require.Equal(t, ClassProtocol, apiErr.Class)
}

func TestHistoryReturnsNilOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	entry, err := c.History(context.Background(), "abc-123")
	require.NoError(t, err, "expected nil error on 404")
	require.Nil(t, entry, "expected nil entry on 404")
}

func TestHistoryParsesCompletedEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"abc-123": map[string]interface{}{
				"status": map[string]interface{}{"completed": true, "status_str": "success"},
				"outputs": map[string]interface{}{
					"9": map[string]interface{}{
						"images": []map[string]interface{}{
							{"filename": "out.png", "subfolder": "", "type": "output"},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	entry, err := c.History(context.Background(), "abc-123")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.True(t, entry.Completed, "expected a completed entry")
	require.Len(t, entry.Outputs["9"], 1)
	require.Equal(t, "out.png", entry.Outputs["9"][0].Filename)
}

func TestUploadImageReturnsRenamedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20), "parsing multipart form")
		json.NewEncoder(w).Encode(map[string]string{"name": "renamed.png", "subfolder": "", "type": "input"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.UploadImage(context.Background(), []byte("fake-bytes"), "source.png")
	require.NoError(t, err)
	require.Equal(t, "renamed.png", result.Name)
}

func TestAdapterTriggerWordsLocalSplitsCommaJoinedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":       true,
			"trigger_words": []string{"word1, word2", "word3"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	words, ok, err := c.AdapterTriggerWordsLocal(context.Background(), "adapter.safetensors")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"word1", "word2", "word3"}, words, "expected split+trimmed words")
}
