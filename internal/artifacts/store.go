// Package artifacts uploads build outputs to content-addressed
// storage and returns the resulting CID.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/solfoundry/solforge/internal/solidity"
)

// Store uploads artifact bundles to an IPFS node's HTTP API.
//
// Upload failures are reported as an empty CID, never an error:
// verification holds the standard-json-input independently, so a
// failed upload only loses artifact browsing.
type Store struct {
	apiURL     string
	gatewayURL string
	client     *http.Client
	logger     *slog.Logger
}

// New creates a store talking to the IPFS API at apiURL. An empty
// apiURL disables uploads entirely.
func New(apiURL, gatewayURL string, timeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GatewayURL returns the retrieval URL for a CID, or "" when the CID
// is empty.
func (s *Store) GatewayURL(cid string) string {
	if cid == "" {
		return ""
	}
	return fmt.Sprintf("%s/ipfs/%s", s.gatewayURL, cid)
}

// Upload packages each source file plus abi.json, bytecode.txt and
// standardJsonInput.json as one logical directory and uploads it.
// Returns the directory CID, or "" when the upload fails.
func (s *Store) Upload(ctx context.Context, sources solidity.SourceMap, abi json.RawMessage, bytecode string, standardJSONInput []byte) string {
	if s.apiURL == "" {
		return ""
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	files := map[string][]byte{
		"abi.json":               abi,
		"bytecode.txt":           []byte(bytecode),
		"standardJsonInput.json": standardJSONInput,
	}
	for name, sf := range sources {
		files[name] = []byte(sf.Content)
	}

	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			s.logger.Warn("artifact upload failed", "error", err)
			return ""
		}
		if _, err := part.Write(content); err != nil {
			s.logger.Warn("artifact upload failed", "error", err)
			return ""
		}
	}
	if err := mw.Close(); err != nil {
		s.logger.Warn("artifact upload failed", "error", err)
		return ""
	}

	url := s.apiURL + "/api/v0/add?wrap-with-directory=true&pin=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		s.logger.Warn("artifact upload failed", "error", err)
		return ""
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("artifact upload failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("artifact upload failed", "status", resp.StatusCode)
		return ""
	}

	cid := parseDirectoryCID(resp.Body)
	if cid == "" {
		s.logger.Warn("artifact upload returned no directory CID")
		return ""
	}

	s.logger.Info("artifacts uploaded", "cid", cid, "files", len(files))
	return cid
}

// parseDirectoryCID reads the node's newline-delimited add output and
// returns the hash of the wrapping directory (the entry without a
// file name).
func parseDirectoryCID(r io.Reader) string {
	dec := json.NewDecoder(r)
	var last string
	for {
		var entry struct {
			Name string `json:"Name"`
			Hash string `json:"Hash"`
		}
		if err := dec.Decode(&entry); err != nil {
			break
		}
		if entry.Name == "" {
			return entry.Hash
		}
		last = entry.Hash
	}
	return last
}
