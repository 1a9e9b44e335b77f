// Package core defines the entity model and collaborator interfaces for
// confmark. The conversion pipeline is composed from small interfaces so each
// stage stays independently testable.
package core

import (
	"context"
	"errors"
	"mime"
	"sort"
	"strings"
)

// ErrNotFound reports that a remote entity (page, space, user, issue,
// attachment binary) does not exist or is not accessible.
var ErrNotFound = errors.New("not found")

// Space is a named collection of pages forming one content area.
type Space struct {
	Key         string
	Name        string
	Description string
	HomepageID  int64
}

// Label is a tag attached to a page.
type Label struct {
	ID     string
	Name   string
	Prefix string
}

// User identifies a platform account, used for mentions and version info.
type User struct {
	AccountID   string
	Username    string
	DisplayName string
	PublicName  string
	Email       string
}

// Issue is a tracker issue resolved for inline issue macros.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Status      string
}

// Version holds the last-modified metadata of an attachment.
type Version struct {
	Number       int
	When         string
	FriendlyWhen string
	By           User
}

// Attachment is a binary asset bound to one page's container context.
type Attachment struct {
	ID        string
	Title     string
	SpaceKey  string
	FileSize  int64
	MediaType string
	// FileID is a content-addressed identifier, stable across renames.
	// Filenames derive from it rather than from the user-visible title.
	FileID       string
	DownloadLink string
	Comment      string
	// Ancestors is the id chain of the containing page, root excluded,
	// ending with the containing page itself.
	Ancestors []int64
	Version   Version
}

// preferredExtensions pins an extension for media types where
// mime.ExtensionsByType offers several candidates.
var preferredExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"text/plain":               ".txt",
	"text/html":                ".html",
	"application/octet-stream": ".bin",
}

// Extension infers the file extension from the media type, special-casing
// draw.io diagram sources and their rendered previews, which share a sibling
// naming convention (name.drawio / name.drawio.png).
func (a *Attachment) Extension() string {
	if a.Comment == "draw.io diagram" && a.MediaType == "application/vnd.jgraph.mxfile" {
		return ".drawio"
	}
	if a.Comment == "draw.io preview" && a.MediaType == "image/png" {
		return ".drawio.png"
	}
	if ext, ok := preferredExtensions[a.MediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(a.MediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	sort.Strings(exts)
	return exts[0]
}

// Filename is the exported file name: file id plus inferred extension.
func (a *Attachment) Filename() string {
	return a.FileID + a.Extension()
}

// Page is a single content unit with a title, HTML body variants and a place
// in the ancestor hierarchy.
type Page struct {
	ID       int64
	Title    string
	SpaceKey string
	// Body is the interactive "view" rendering.
	Body string
	// BodyExport is the static export rendering, used as the authoritative
	// fallback for macros the interactive rendering leaves empty.
	BodyExport string
	// Editor2 is the editor-internal representation, searched when resolving
	// create-page placeholder links.
	Editor2 string
	// Ancestors is the id chain from the space homepage to the immediate
	// parent, root excluded, in root-to-parent order.
	Ancestors   []int64
	Labels      []Label
	Attachments []Attachment
}

// AttachmentByFileID finds an attachment whose file id contains the given id.
func (p *Page) AttachmentByFileID(fileID string) *Attachment {
	if fileID == "" {
		return nil
	}
	for i := range p.Attachments {
		a := &p.Attachments[i]
		if a.FileID != "" && strings.Contains(a.FileID, fileID) {
			return a
		}
	}
	return nil
}

// AttachmentByID finds an attachment by its plain id, falling back past
// file ids. Some server installs store attachments without a file id.
func (p *Page) AttachmentByID(id string) *Attachment {
	if id == "" {
		return nil
	}
	for i := range p.Attachments {
		a := &p.Attachments[i]
		if strings.Contains(a.ID, id) {
			return a
		}
		if a.FileID != "" && strings.Contains(a.FileID, id) {
			return a
		}
	}
	return nil
}

// AttachmentsByTitle returns every attachment with the exact title.
func (p *Page) AttachmentsByTitle(title string) []*Attachment {
	var out []*Attachment
	for i := range p.Attachments {
		if p.Attachments[i].Title == title {
			out = append(out, &p.Attachments[i])
		}
	}
	return out
}

// ContentClient is the remote content-platform collaborator. Implementations
// own transport, retries and authentication; callers only see entities and
// ErrNotFound.
type ContentClient interface {
	// PageByID fetches a page with both body variants, editor2, labels,
	// ancestors and its full (paginated) attachment list.
	PageByID(ctx context.Context, id int64) (*Page, error)
	// SpaceByKey fetches a space including its homepage id.
	SpaceByKey(ctx context.Context, key string) (*Space, error)
	// Spaces enumerates all current global spaces.
	Spaces(ctx context.Context) ([]*Space, error)
	// DescendantIDs returns the transitive descendant page ids of a page
	// (paged retrieval, concatenated).
	DescendantIDs(ctx context.Context, pageID int64) ([]int64, error)
	// PageIDByTitle resolves a space key and page title to a page id.
	PageIDByTitle(ctx context.Context, spaceKey, title string) (int64, error)
	// DownloadAttachment retrieves an attachment binary by download locator.
	DownloadAttachment(ctx context.Context, downloadLink string) ([]byte, error)
	// UserByAccountID resolves a user for mention rendering.
	UserByAccountID(ctx context.Context, accountID string) (*User, error)
	// IssueByKey resolves a tracker issue for inline issue macros.
	IssueByKey(ctx context.Context, key string) (*Issue, error)
}
