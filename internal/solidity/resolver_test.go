package solidity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(cdnBase string) *Resolver {
	return NewResolver(cdnBase, 5*time.Second, testLogger())
}

func TestResolveNoImports(t *testing.T) {
	r := newTestResolver("http://cdn.invalid")
	src := "pragma solidity ^0.8.0;\ncontract Empty {}\n"

	rewritten, sources, err := r.Resolve(context.Background(), src, "Empty.sol", nil)
	require.NoError(t, err)
	assert.Equal(t, src, rewritten)
	assert.Empty(t, sources)
}

func TestResolveCDNImport(t *testing.T) {
	erc20 := "pragma solidity ^0.8.0;\ncontract ERC20 {}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/@openzeppelin/contracts/token/ERC20/ERC20.sol" {
			io.WriteString(w, erc20)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import "@openzeppelin/contracts/token/ERC20/ERC20.sol";` + "\ncontract Token is ERC20 {}\n"

	rewritten, sources, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.NoError(t, err)

	require.Contains(t, sources, "ERC20.sol")
	assert.Equal(t, erc20, sources["ERC20.sol"].Content)
	assert.Contains(t, rewritten, `import "ERC20.sol";`)
	assert.NotContains(t, rewritten, "@openzeppelin")
}

func TestResolveNamedImportForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "contract Ownable {}")
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import {Ownable} from "@openzeppelin/contracts/access/Ownable.sol";`

	rewritten, sources, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.NoError(t, err)
	assert.Contains(t, sources, "Ownable.sol")
	assert.Contains(t, rewritten, `from "Ownable.sol"`)
}

func TestResolveRelativeImportWalksUp(t *testing.T) {
	var fetched []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Path)
		switch r.URL.Path {
		case "/@pkg/contracts/token/ERC20.sol":
			io.WriteString(w, `import "../utils/Context.sol";`+"\ncontract ERC20 {}")
		case "/@pkg/contracts/utils/Context.sol":
			io.WriteString(w, "contract Context {}")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import "@pkg/contracts/token/ERC20.sol";`

	_, sources, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.NoError(t, err)

	// ../utils/Context.sol from contracts/token resolves one
	// directory above the importing file
	assert.Contains(t, fetched, "/@pkg/contracts/utils/Context.sol")
	assert.Contains(t, sources, "Context.sol")
	assert.Contains(t, sources["ERC20.sol"].Content, `import "Context.sol";`)
}

func TestResolveLocalOverrideSkipsFetch(t *testing.T) {
	// No CDN available: any fetch attempt fails the test
	r := newTestResolver("http://cdn.invalid")
	local := SourceMap{
		"ERC20.sol": {Content: "contract ERC20 {}"},
	}
	src := `import "ERC20.sol";` + "\ncontract Token is ERC20 {}"

	rewritten, sources, err := r.Resolve(context.Background(), src, "Token.sol", local)
	require.NoError(t, err)

	// Already-resolved imports are an identity on the source map
	assert.Equal(t, local, sources)
	assert.Equal(t, src, rewritten)
}

func TestResolveFetchFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import "@missing/Nope.sol";`

	_, _, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.Error(t, err)

	var fetchErr *ImportFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.Status)
}

func TestResolveImportCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/@pkg/A.sol":
			io.WriteString(w, `import "./B.sol";`+"\ncontract A {}")
		case "/@pkg/B.sol":
			io.WriteString(w, `import "./A.sol";`+"\ncontract B {}")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import "@pkg/A.sol";`

	_, _, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.ErrorIs(t, err, ErrImportCycle)
}

func TestResolveDiamondImportFetchedOnce(t *testing.T) {
	var contextFetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/@pkg/A.sol":
			io.WriteString(w, `import "./Context.sol";`+"\ncontract A {}")
		case "/@pkg/B.sol":
			io.WriteString(w, `import "./Context.sol";`+"\ncontract B {}")
		case "/@pkg/Context.sol":
			contextFetches++
			io.WriteString(w, "contract Context {}")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import "@pkg/A.sol";` + "\n" + `import "@pkg/B.sol";`

	_, sources, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, contextFetches)
	assert.Len(t, sources, 3)
}

func TestResolveNameCollisionKeepsTwoSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/@a/utils/Math.sol":
			io.WriteString(w, "contract MathA {}")
		case "/@b/utils/Math.sol":
			io.WriteString(w, "contract MathB {}")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := newTestResolver(srv.URL)
	src := `import "@a/utils/Math.sol";` + "\n" + `import "@b/utils/Math.sol";`

	_, sources, err := r.Resolve(context.Background(), src, "Token.sol", nil)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Contains(t, sources, "Math.sol")
	assert.Contains(t, sources, "utils/Math.sol")
}

func TestToFetchURLGitHubBlobRewrite(t *testing.T) {
	got := toFetchURL("https://github.com/org/repo/blob/main/contracts/Token.sol", "http://cdn.invalid")
	assert.Equal(t, "https://raw.githubusercontent.com/org/repo/main/contracts/Token.sol", got)
}

func TestImportRegexForms(t *testing.T) {
	cases := map[string]string{
		`import "Plain.sol";`:                       "Plain.sol",
		`import './Relative.sol';`:                  "./Relative.sol",
		`import {A, B} from "Named.sol";`:           "Named.sol",
		`import * as Everything from "Glob.sol";`:   "Glob.sol",
		"import\n    \"Multiline.sol\";":            "Multiline.sol",
		`import {Thing} from '@scope/pkg/T.sol';`:   "@scope/pkg/T.sol",
	}
	for stmt, want := range cases {
		m := importRe.FindStringSubmatch(stmt)
		require.NotNil(t, m, "statement %q did not match", stmt)
		assert.Equal(t, want, m[1])
	}
	assert.False(t, importRe.MatchString(`contract NoImports {}`))
}
