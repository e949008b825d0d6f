package artifacts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfoundry/solforge/internal/solidity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpload(t *testing.T) {
	var gotNames []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v0/add", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		for _, fhs := range r.MultipartForm.File {
			for _, fh := range fhs {
				gotNames = append(gotNames, fh.Filename)
			}
		}
		io.WriteString(w, `{"Name":"abi.json","Hash":"QmFile1"}
{"Name":"Token.sol","Hash":"QmFile2"}
{"Name":"","Hash":"QmDirCID"}
`)
	}))
	defer srv.Close()

	s := New(srv.URL, "https://ipfs.io", 5*time.Second, testLogger())
	cid := s.Upload(context.Background(),
		solidity.SourceMap{"Token.sol": {Content: "contract Token {}"}},
		[]byte(`[]`), "0x6080", []byte(`{}`))

	assert.Equal(t, "QmDirCID", cid)
	assert.ElementsMatch(t,
		[]string{"abi.json", "bytecode.txt", "standardJsonInput.json", "Token.sol"},
		gotNames)
}

func TestUploadFailureReturnsEmptyCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(srv.URL, "https://ipfs.io", 5*time.Second, testLogger())
	cid := s.Upload(context.Background(), nil, []byte(`[]`), "0x", []byte(`{}`))
	assert.Empty(t, cid)
}

func TestUploadDisabled(t *testing.T) {
	s := New("", "https://ipfs.io", time.Second, testLogger())
	assert.Empty(t, s.Upload(context.Background(), nil, nil, "", nil))
}

func TestGatewayURL(t *testing.T) {
	s := New("", "https://ipfs.io/", time.Second, testLogger())
	assert.Equal(t, "https://ipfs.io/ipfs/QmX", s.GatewayURL("QmX"))
	assert.Empty(t, s.GatewayURL(""))
}

func TestParseDirectoryCIDFallsBackToLast(t *testing.T) {
	out := strings.NewReader(`{"Name":"a","Hash":"QmA"}` + "\n" + `{"Name":"b","Hash":"QmB"}` + "\n")
	assert.Equal(t, "QmB", parseDirectoryCID(out))
}
