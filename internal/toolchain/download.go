// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cheggaaa/pb"
	"github.com/go-git/go-billy/v5"
	"github.com/oss-bisect/bisector/internal/httpx"
	"github.com/oss-bisect/bisector/pkg/archive"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// componentURL builds the tarball URL for one component of spec, trying
// each candidate format in order (spec.md §6 "Artifact URLs").
func componentURL(prefix, location, component, target, ext string) string {
	return fmt.Sprintf("%s/%s/%s-nightly-%s.tar.%s", prefix, location, component, target, ext)
}

// fetchComponent downloads and decompresses one component's tarball,
// trying tarFormats(host) in order and falling back to the next format
// on HTTP 404 (spec.md §4.4 step 6). Any other HTTP error aborts.
func fetchComponent(ctx context.Context, client httpx.BasicClient, prefix, location, component, target, host string, spec Spec, showProgress bool) (io.ReadCloser, error) {
	formats := tarFormats(host)
	var lastURL string
	for i, ext := range formats {
		url := componentURL(prefix, location, component, target, ext)
		lastURL = url
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &DownloadError{Cause: err}
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, &DownloadError{Cause: err}
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			if i == len(formats)-1 {
				return nil, &NotFoundError{URL: url, Spec: spec}
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &DownloadError{Cause: errors.Errorf("unexpected status %s for %s", resp.Status, url)}
		}
		body := io.ReadCloser(resp.Body)
		if showProgress {
			bar := pb.New64(resp.ContentLength).SetUnits(pb.U_BYTES)
			bar.Prefix(component + " ")
			bar.Start()
			body = &progressCloser{ReadCloser: resp.Body, bar: bar}
		}
		switch ext {
		case "xz":
			xzr, err := xz.NewReader(body)
			if err != nil {
				body.Close()
				return nil, &DownloadError{Cause: errors.Wrap(err, "opening xz stream")}
			}
			return &xzCloser{Reader: xzr, underlying: body}, nil
		case "gz":
			gz, err := gzip.NewReader(body)
			if err != nil {
				body.Close()
				return nil, &DownloadError{Cause: errors.Wrap(err, "opening gzip stream")}
			}
			return &gzipCloser{Reader: gz, underlying: body}, nil
		default:
			return body, nil
		}
	}
	return nil, &NotFoundError{URL: lastURL, Spec: spec}
}

// progressCloser drives a cheggaaa/pb bar as bytes are read, and closes
// it alongside the underlying response body.
type progressCloser struct {
	io.ReadCloser
	bar *pb.ProgressBar
}

func (p *progressCloser) Read(b []byte) (int, error) {
	n, err := p.ReadCloser.Read(b)
	p.bar.Add(n)
	if err != nil {
		p.bar.Finish()
	}
	return n, err
}

type gzipCloser struct {
	*gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipCloser) Close() error {
	g.Reader.Close()
	return g.underlying.Close()
}

// xzCloser adapts ulikunitz/xz's Reader (no Close method of its own) to
// io.ReadCloser, closing the underlying HTTP response body alongside it.
type xzCloser struct {
	*xz.Reader
	underlying io.ReadCloser
}

func (x *xzCloser) Close() error {
	return x.underlying.Close()
}

// extractComponent extracts a downloaded component's tar stream into
// dir, stripping the outer two path components of every entry
// (`<component>-nightly-<host>/<component>/…` → `…`), per spec.md §4.4
// step 7.
func extractComponent(body io.Reader, dir billy.Filesystem, component, host string) error {
	tr := tar.NewReader(body)
	subdir := fmt.Sprintf("%s-nightly-%s/%s", component, host, component)
	if err := archive.ExtractTar(tr, dir, archive.ExtractOptions{SubDir: subdir}); err != nil {
		return &ScratchError{Cause: err}
	}
	return nil
}
