package data

import (
	"context"
	"io"

	"github.com/astronomyk/CrowdSky/internal/pkg/webdav"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
)

// WebDAVArchive implements biz.ArchiveStore against a share-token
// protected WebDAV endpoint.
type WebDAVArchive struct {
	client *webdav.Client
}

// NewWebDAVArchive creates a new WebDAV-backed archive store
func NewWebDAVArchive(client *webdav.Client) biz.ArchiveStore {
	return &WebDAVArchive{client: client}
}

func (a *WebDAVArchive) MkdirAll(ctx context.Context, remotePath string) error {
	return a.client.MkdirAll(ctx, remotePath)
}

func (a *WebDAVArchive) Put(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	return a.client.Put(ctx, remotePath, r, size)
}

func (a *WebDAVArchive) Delete(ctx context.Context, remotePath string) error {
	return a.client.Delete(ctx, remotePath)
}
