package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"walletzone/internal/domain"
)

// DefaultIPFSGateway resolves ipfs:// URIs over plain HTTP.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

// maxMetadataBytes caps a metadata document; anything larger is junk.
const maxMetadataBytes = 1 << 20

// MetadataResolver fetches off-chain NFT metadata for a token URI.
type MetadataResolver interface {
	Resolve(ctx context.Context, uri string) (domain.NFTMetadata, error)
}

// HTTPMetadataFetcher resolves token URIs over HTTP, rewriting ipfs://
// URIs to a public gateway.
type HTTPMetadataFetcher struct {
	client  *http.Client
	gateway string
}

// Compile-time interface check.
var _ MetadataResolver = (*HTTPMetadataFetcher)(nil)

// FetcherOption configures HTTPMetadataFetcher.
type FetcherOption func(*HTTPMetadataFetcher)

// WithGateway overrides the IPFS gateway base URL.
func WithGateway(gateway string) FetcherOption {
	return func(f *HTTPMetadataFetcher) {
		f.gateway = gateway
	}
}

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) FetcherOption {
	return func(f *HTTPMetadataFetcher) {
		f.client = client
	}
}

// NewHTTPMetadataFetcher creates a metadata fetcher with sane timeouts.
func NewHTTPMetadataFetcher(opts ...FetcherOption) *HTTPMetadataFetcher {
	f := &HTTPMetadataFetcher{
		client:  &http.Client{Timeout: 10 * time.Second},
		gateway: DefaultIPFSGateway,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve fetches and decodes the metadata document behind a token URI.
func (f *HTTPMetadataFetcher) Resolve(ctx context.Context, uri string) (domain.NFTMetadata, error) {
	url, err := f.rewriteURI(uri)
	if err != nil {
		return domain.NFTMetadata{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.NFTMetadata{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.NFTMetadata{}, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NFTMetadata{}, fmt.Errorf("fetch metadata: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return domain.NFTMetadata{}, fmt.Errorf("read metadata: %w", err)
	}

	var meta domain.NFTMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return domain.NFTMetadata{}, fmt.Errorf("parse metadata: %w", err)
	}

	// Image URIs point at IPFS at least as often as the documents do.
	if img, err := f.rewriteURI(meta.Image); err == nil {
		meta.Image = img
	}

	return meta, nil
}

// rewriteURI maps ipfs:// URIs onto the gateway and passes http(s) URIs
// through. CIDv0 paths are validated as base58 before hitting the
// network.
func (f *HTTPMetadataFetcher) rewriteURI(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		path := strings.TrimPrefix(uri, "ipfs://")
		path = strings.TrimPrefix(path, "ipfs/")
		if cid, _, _ := strings.Cut(path, "/"); strings.HasPrefix(cid, "Qm") {
			if _, err := base58.Decode(cid); err != nil {
				return "", fmt.Errorf("invalid CID %q: %w", cid, err)
			}
		}
		return f.gateway + path, nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri, nil
	case uri == "":
		return "", fmt.Errorf("empty URI")
	default:
		return "", fmt.Errorf("unsupported URI scheme in %q", uri)
	}
}
