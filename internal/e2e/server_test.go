//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gmabatah93/Project2Article/internal/artifact"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/runstore"
	"github.com/Gmabatah93/Project2Article/internal/server"
)

// TestServer_E2E_UploadToArticle drives the HTTP API the way the browser
// does: upload, follow the event stream to its end, then download.
func TestServer_E2E_UploadToArticle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	history, err := runstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer history.Close()

	srv, err := server.New(server.Options{
		Driver:    pipeline.Options{OpenOutliner: treeSitterOutliner},
		Artifacts: artifact.NewMemoryStore(),
		History:   history,
	})
	require.NoError(t, err)
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("archive", "go_project.tar.gz")
	require.NoError(t, err)
	_, err = fw.Write(fixtureArchive(t))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("depth", "detailed"))
	require.NoError(t, mw.WriteField("tone", "marketing"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/runs", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created struct {
		RunID  string `json:"runId"`
		Events string `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.RunID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/runs/"+created.RunID+"/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	var names []string
	sc := bufio.NewScanner(stream.Body)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	require.NotEmpty(t, names)
	assert.Equal(t, "end", names[len(names)-1])

	get := func(path string) (int, []byte) {
		r, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer r.Body.Close()
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		return r.StatusCode, data
	}

	code, data := get("/api/runs/" + created.RunID)
	require.Equal(t, http.StatusOK, code)
	var status struct {
		Status   string `json:"status"`
		Sections []struct {
			Heading string `json:"heading"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, "complete", status.Status)
	require.NotEmpty(t, status.Sections)

	code, data = get("/api/runs/" + created.RunID + "/artifacts/article.md")
	require.Equal(t, http.StatusOK, code)
	for _, s := range status.Sections {
		assert.Contains(t, string(data), "## "+s.Heading)
	}
	assert.Contains(t, string(data), "- **Article Tone**: Marketing")

	code, data = get("/api/runs")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), created.RunID)
}
