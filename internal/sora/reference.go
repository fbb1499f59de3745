package sora

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"
)

// ErrBlockedAddress is returned for reference URLs that resolve to loopback,
// private, link-local or otherwise non-public addresses.
var ErrBlockedAddress = errors.New("destination address is not allowed")

// carrier-grade NAT space; netip.Addr.IsPrivate does not cover it.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// ImageFetcher downloads caller-supplied reference images.
type ImageFetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

type FetcherOption func(*fetcherOptions)

type fetcherOptions struct {
	allowPrivate bool
}

// WithPrivateNetworks lets the fetcher reach non-public addresses. Only for
// tests and local development.
func WithPrivateNetworks() FetcherOption {
	return func(o *fetcherOptions) { o.allowPrivate = true }
}

func NewImageFetcher(timeout time.Duration, maxBytes int64, opts ...FetcherOption) *ImageFetcher {
	var o fetcherOptions
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !o.allowPrivate {
		dialer.Control = denyNonPublic
	}

	// No proxy: the dialer must see the real destination to check it.
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &ImageFetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxBytes: maxBytes,
	}
}

// denyNonPublic runs after name resolution for every connection, redirects
// included.
func denyNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || sharedAddressSpace.Contains(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (*ReferenceImage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ReferenceImageFetchError{URL: rawURL, Err: fmt.Errorf("invalid image url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &ReferenceImageFetchError{URL: rawURL, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &ReferenceImageFetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &ReferenceImageFetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &ReferenceImageFetchError{URL: rawURL, Err: fmt.Errorf("failed to read image: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &ReferenceImageFetchError{URL: rawURL, Err: fmt.Errorf("image exceeds %d bytes", f.maxBytes)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return &ReferenceImage{Data: data, ContentType: contentType}, nil
}
