package github

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/phonelist-server/pkg/config/memory"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document/tests"
)

const (
	testToken = "test-token"
	testOwner = "owner"
	testRepo  = "repo"
)

type fakeFile struct {
	sha     string
	content []byte
}

type putRecord struct {
	Message   string `json:"message"`
	Content   string `json:"content"`
	Sha       string `json:"sha"`
	Committer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"committer"`
}

// fakeContentsApi emulates the subset of the GitHub contents API used by the store
type fakeContentsApi struct {
	mu      sync.Mutex
	files   map[string]*fakeFile
	puts    []putRecord
	failGet bool
}

func newFakeContentsApi() *fakeContentsApi {
	return &fakeContentsApi{
		files: make(map[string]*fakeFile),
	}
}

func (f *fakeContentsApi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		writeJson(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	prefix := "/repos/" + testOwner + "/" + testRepo + "/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeJson(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		if f.failGet {
			writeJson(w, http.StatusBadGateway, map[string]string{"message": "Server Error"})
			return
		}

		file, ok := f.files[path]
		if !ok {
			writeJson(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}

		encoded := base64.StdEncoding.EncodeToString(file.content)
		var wrapped []string
		for len(encoded) > 60 {
			wrapped = append(wrapped, encoded[:60])
			encoded = encoded[60:]
		}
		wrapped = append(wrapped, encoded)

		writeJson(w, http.StatusOK, map[string]string{
			"type":     "file",
			"path":     path,
			"sha":      file.sha,
			"encoding": "base64",
			"content":  strings.Join(wrapped, "\n") + "\n",
		})
	case http.MethodPut:
		var body putRecord
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJson(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
			return
		}
		f.puts = append(f.puts, body)

		existing, ok := f.files[path]
		switch {
		case ok && len(body.Sha) == 0:
			writeJson(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
			return
		case ok && body.Sha != existing.sha:
			writeJson(w, http.StatusConflict, map[string]string{"message": path + " does not match " + body.Sha})
			return
		case !ok && len(body.Sha) > 0:
			writeJson(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}

		content, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			writeJson(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
			return
		}

		hash := sha1.Sum(append([]byte(path+body.Message), content...))
		file := &fakeFile{
			sha:     hex.EncodeToString(hash[:]),
			content: content,
		}
		f.files[path] = file

		status := http.StatusOK
		if !ok {
			status = http.StatusCreated
		}
		writeJson(w, status, map[string]interface{}{
			"content": map[string]string{"sha": file.sha, "path": path},
		})
	default:
		writeJson(w, http.StatusMethodNotAllowed, map[string]string{"message": "Not Found"})
	}
}

func (f *fakeContentsApi) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.files = make(map[string]*fakeFile)
	f.puts = nil
	f.failGet = false
}

func (f *fakeContentsApi) setFailGet(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failGet = fail
}

func (f *fakeContentsApi) setFile(path string, file *fakeFile) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[path] = file
}

func (f *fakeContentsApi) getFile(path string) (*fakeFile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.files[path]
	return file, ok
}

func (f *fakeContentsApi) getPuts() []putRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]putRecord(nil), f.puts...)
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func setupTestStore(t *testing.T) (*fakeContentsApi, *memory.Source, document.Store) {
	api := newFakeContentsApi()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	settings := memory.NewSource(map[string]interface{}{
		TokenConfigEnvName: testToken,
		OwnerConfigEnvName: testOwner,
		RepoConfigEnvName:  testRepo,
	})

	s := New(withManualTestOverrides(&testOverrides{
		settings:   settings,
		apiBaseUrl: server.URL,
	}))
	return api, settings, s
}

func TestDocumentGithubStore(t *testing.T) {
	api, _, testStore := setupTestStore(t)
	teardown := func() {
		api.reset()
	}
	tests.RunTests(t, testStore, teardown)
}

func TestWriteCommitMetadata(t *testing.T) {
	api, _, s := setupTestStore(t)

	ctx := context.Background()

	_, err := s.Write(ctx, "list", []string{"1234567890"}, nil, "Add phone 1234567890 to list")
	require.NoError(t, err)

	puts := api.getPuts()
	require.Len(t, puts, 1)
	put := puts[0]
	assert.Equal(t, "Add phone 1234567890 to list", put.Message)
	assert.Equal(t, "Phone API", put.Committer.Name)
	assert.Equal(t, "api@phone.app", put.Committer.Email)

	content, err := base64.StdEncoding.DecodeString(put.Content)
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"1234567890\"\n]", string(content))

	_, ok := api.getFile("data/list.json")
	assert.True(t, ok)
}

func TestMissingConfiguration(t *testing.T) {
	ctx := context.Background()

	for _, key := range []string{TokenConfigEnvName, OwnerConfigEnvName, RepoConfigEnvName} {
		t.Run(key, func(t *testing.T) {
			api, settings, s := setupTestStore(t)
			settings.Clear(key)

			_, err := s.Read(ctx, "list")
			assert.Equal(t, document.ErrNotConfigured, err)

			_, err = s.Write(ctx, "list", []string{"1234567890"}, nil, "create")
			assert.Equal(t, document.ErrNotConfigured, err)

			assert.Empty(t, api.getPuts())

			// Configuration is checked on every operation
			settings.Set(key, map[string]string{
				TokenConfigEnvName: testToken,
				OwnerConfigEnvName: testOwner,
				RepoConfigEnvName:  testRepo,
			}[key])

			_, err = s.Read(ctx, "list")
			assert.NoError(t, err)
		})
	}
}

func TestStoreErrors(t *testing.T) {
	api, settings, s := setupTestStore(t)

	ctx := context.Background()

	api.setFailGet(true)
	_, err := s.Read(ctx, "list")
	assert.True(t, document.IsStoreError(err))
	api.setFailGet(false)

	api.setFile("data/corrupt.json", &fakeFile{sha: "abc", content: []byte(`{"phones":[]}`)})
	_, err = s.Read(ctx, "corrupt")
	assert.True(t, document.IsStoreError(err))
	assert.True(t, errors.Is(err, document.ErrCorruptDocument))

	settings.Set(TokenConfigEnvName, "bad-token")
	_, err = s.Write(ctx, "list", []string{"1234567890"}, nil, "create")
	assert.True(t, document.IsStoreError(err))
	assert.False(t, errors.Is(err, document.ErrVersionConflict))
}

func TestInvalidApiBaseUrl(t *testing.T) {
	settings := memory.NewSource(map[string]interface{}{
		TokenConfigEnvName: testToken,
		OwnerConfigEnvName: testOwner,
		RepoConfigEnvName:  testRepo,
	})

	s := New(withManualTestOverrides(&testOverrides{
		settings:   settings,
		apiBaseUrl: "ftp://api.github.com",
	}))

	_, err := s.Read(context.Background(), "list")
	assert.Equal(t, document.ErrNotConfigured, err)
}
