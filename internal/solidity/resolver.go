// Package solidity implements the contract build pipeline: flattening
// external import graphs into a single source map and compiling it
// with solc standard-json-input.
package solidity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
)

// SourceFile is one entry in a compiler source map.
type SourceFile struct {
	Content string `json:"content"`
}

// SourceMap maps virtual file names to source content. Once a map is
// handed to the compiler it is never mutated.
type SourceMap map[string]SourceFile

// ErrImportCycle is returned when the import graph revisits a file
// that is still being resolved.
var ErrImportCycle = errors.New("import cycle detected")

// ImportFetchError reports an unreachable or non-2xx import URL.
// It aborts the whole resolution; there is no partial success.
type ImportFetchError struct {
	Path   string
	URL    string
	Status int
	Err    error
}

func (e *ImportFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching import %q from %s: %v", e.Path, e.URL, e.Err)
	}
	return fmt.Sprintf("fetching import %q from %s: status %d", e.Path, e.URL, e.Status)
}

func (e *ImportFetchError) Unwrap() error { return e.Err }

// Matches both bare (`import "X";`) and named
// (`import {A} from "X";`, `import * as A from "X";`) forms.
var importRe = regexp.MustCompile(`import\s+(?:(?:\{[^}]*\}|\*\s*as\s*\w+)\s+from\s+)?["']([^"']+)["']\s*;`)

// Resolver recursively fetches external Solidity imports and flattens
// them into one source map.
type Resolver struct {
	client  *http.Client
	cdnBase string
	logger  *slog.Logger
}

// NewResolver creates a resolver. cdnBase is the package CDN that
// serves bare `@scope/...` imports (e.g. https://unpkg.com).
func NewResolver(cdnBase string, fetchTimeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		client:  &http.Client{Timeout: fetchTimeout},
		cdnBase: strings.TrimSuffix(cdnBase, "/"),
		logger:  logger,
	}
}

// Resolve scans source for import statements, fetches every external
// import transitively, and returns the rewritten source plus a flat
// map of all discovered files. local supplies already-fetched content
// keyed by path so recompilation does not refetch.
func (r *Resolver) Resolve(ctx context.Context, source, sourcePath string, local SourceMap) (string, SourceMap, error) {
	out := make(SourceMap)
	st := &resolveState{
		resolved: make(map[string]string),
		inflight: make(map[string]bool),
	}
	rewritten, err := r.resolveInto(ctx, source, sourcePath, local, out, st)
	if err != nil {
		return "", nil, err
	}
	return rewritten, out, nil
}

type resolveState struct {
	resolved map[string]string // resolved path -> flattened file name
	inflight map[string]bool   // guards against cyclic import graphs
}

func (r *Resolver) resolveInto(ctx context.Context, source, sourcePath string, local, out SourceMap, st *resolveState) (string, error) {
	matches := importRe.FindAllStringSubmatch(source, -1)
	rewritten := source

	for _, m := range matches {
		importPath := m[1]
		resolvedPath := resolvePath(importPath, sourcePath)

		flat, ok := st.resolved[resolvedPath]
		if !ok {
			if st.inflight[resolvedPath] {
				return "", fmt.Errorf("%w: %s", ErrImportCycle, resolvedPath)
			}

			content, err := r.loadImport(ctx, importPath, resolvedPath, local)
			if err != nil {
				return "", err
			}

			st.inflight[resolvedPath] = true
			inner, err := r.resolveInto(ctx, content, resolvedPath, local, out, st)
			delete(st.inflight, resolvedPath)
			if err != nil {
				return "", err
			}

			flat = flattenName(resolvedPath, inner, out)
			out[flat] = SourceFile{Content: inner}
			st.resolved[resolvedPath] = flat
		}

		if importPath != flat {
			rewritten = strings.ReplaceAll(rewritten,
				`"`+importPath+`"`, `"`+flat+`"`)
			rewritten = strings.ReplaceAll(rewritten,
				`'`+importPath+`'`, `'`+flat+`'`)
		}
	}

	return rewritten, nil
}

// loadImport returns the content for one import, preferring the local
// override map over the network.
func (r *Resolver) loadImport(ctx context.Context, importPath, resolvedPath string, local SourceMap) (string, error) {
	if local != nil {
		if sf, ok := local[resolvedPath]; ok {
			return sf.Content, nil
		}
		if sf, ok := local[importPath]; ok {
			return sf.Content, nil
		}
		if sf, ok := local[path.Base(resolvedPath)]; ok {
			return sf.Content, nil
		}
	}

	url := toFetchURL(resolvedPath, r.cdnBase)
	return r.fetch(ctx, importPath, url)
}

func (r *Resolver) fetch(ctx context.Context, importPath, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &ImportFetchError{Path: importPath, URL: url, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &ImportFetchError{Path: importPath, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ImportFetchError{Path: importPath, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ImportFetchError{Path: importPath, URL: url, Err: err}
	}

	r.logger.Debug("fetched import", "path", importPath, "url", url, "bytes", len(body))
	return string(body), nil
}

// resolvePath turns an import path into a canonical path or URL.
// Relative imports walk up one directory per `..` segment from the
// importing file's location.
func resolvePath(importPath, sourcePath string) string {
	if !strings.HasPrefix(importPath, "./") && !strings.HasPrefix(importPath, "../") {
		return importPath
	}

	if scheme, rest, ok := splitScheme(sourcePath); ok {
		return scheme + path.Join(path.Dir(rest), importPath)
	}
	return path.Join(path.Dir(sourcePath), importPath)
}

// toFetchURL classifies a resolved path into a fetchable URL:
// `@`-prefixed bare paths go to the package CDN, GitHub blob URLs are
// rewritten to raw content, anything else is used as-is.
func toFetchURL(p, cdnBase string) string {
	if strings.HasPrefix(p, "@") {
		return cdnBase + "/" + p
	}
	if strings.Contains(p, "github.com/") && strings.Contains(p, "/blob/") {
		p = strings.Replace(p, "github.com/", "raw.githubusercontent.com/", 1)
		p = strings.Replace(p, "/blob/", "/", 1)
	}
	return p
}

// flattenName picks the source-map key for a resolved file: the final
// path segment, or the last two segments when a different file
// already claimed that name.
func flattenName(resolvedPath, content string, out SourceMap) string {
	name := path.Base(resolvedPath)
	existing, taken := out[name]
	if !taken || existing.Content == content {
		return name
	}

	segs := strings.Split(strings.TrimSuffix(resolvedPath, "/"), "/")
	if len(segs) >= 2 {
		return segs[len(segs)-2] + "/" + segs[len(segs)-1]
	}
	return name
}

func splitScheme(p string) (scheme, rest string, ok bool) {
	idx := strings.Index(p, "://")
	if idx < 0 {
		return "", p, false
	}
	return p[:idx+3], p[idx+3:], true
}
