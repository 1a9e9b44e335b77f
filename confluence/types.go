package confluence

import (
	"strconv"
	"strings"

	"github.com/confmark/confmark/core"
)

// The REST API returns ids as JSON strings in some places and numbers in
// others. These wire types stick to the string forms and convert once.

type linksJSON struct {
	Next string `json:"next"`
}

type spaceJSON struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description struct {
		Plain struct {
			Value string `json:"value"`
		} `json:"plain"`
	} `json:"description"`
	Homepage struct {
		ID string `json:"id"`
	} `json:"homepage"`
}

func (s *spaceJSON) toSpace() *core.Space {
	homepage, _ := strconv.ParseInt(s.Homepage.ID, 10, 64)
	return &core.Space{
		Key:         s.Key,
		Name:        s.Name,
		Description: s.Description.Plain.Value,
		HomepageID:  homepage,
	}
}

type bodyJSON struct {
	View struct {
		Value string `json:"value"`
	} `json:"view"`
	ExportView struct {
		Value string `json:"value"`
	} `json:"export_view"`
	Editor2 struct {
		Value string `json:"value"`
	} `json:"editor2"`
}

type ancestorJSON struct {
	ID string `json:"id"`
}

type pageJSON struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      bodyJSON       `json:"body"`
	Ancestors []ancestorJSON `json:"ancestors"`
	Metadata  struct {
		Labels struct {
			Results []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Prefix string `json:"prefix"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
	Expandable struct {
		Space string `json:"space"`
	} `json:"_expandable"`
}

func (p *pageJSON) toPage() *core.Page {
	id, _ := strconv.ParseInt(p.ID, 10, 64)
	// The first ancestor is the space root, which never appears in
	// breadcrumbs or paths.
	chain := ancestorIDs(p.Ancestors)
	if len(chain) > 0 {
		chain = chain[1:]
	}
	page := &core.Page{
		ID:         id,
		Title:      p.Title,
		SpaceKey:   spaceKeyFromExpandable(p.Expandable.Space),
		Body:       p.Body.View.Value,
		BodyExport: p.Body.ExportView.Value,
		Editor2:    p.Body.Editor2.Value,
		Ancestors:  chain,
	}
	for _, l := range p.Metadata.Labels.Results {
		page.Labels = append(page.Labels, core.Label{ID: l.ID, Name: l.Name, Prefix: l.Prefix})
	}
	return page
}

type versionJSON struct {
	Number       int    `json:"number"`
	When         string `json:"when"`
	FriendlyWhen string `json:"friendlyWhen"`
	By           struct {
		AccountID   string `json:"accountId"`
		Username    string `json:"username"`
		DisplayName string `json:"displayName"`
		PublicName  string `json:"publicName"`
		Email       string `json:"email"`
	} `json:"by"`
}

type attachmentJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Extensions struct {
		FileSize  int64  `json:"fileSize"`
		MediaType string `json:"mediaType"`
		FileID    string `json:"fileId"`
		Comment   string `json:"comment"`
	} `json:"extensions"`
	Container struct {
		ID        string         `json:"id"`
		Ancestors []ancestorJSON `json:"ancestors"`
	} `json:"container"`
	Links struct {
		Download string `json:"download"`
	} `json:"_links"`
	Version    versionJSON `json:"version"`
	Expandable struct {
		Space string `json:"space"`
	} `json:"_expandable"`
}

func (a *attachmentJSON) toAttachment() core.Attachment {
	// Ancestor chain convention matches pages: drop the space root, end
	// with the containing page itself.
	chain := append(ancestorIDs(a.Container.Ancestors), parseID(a.Container.ID))
	if len(chain) > 0 {
		chain = chain[1:]
	}
	return core.Attachment{
		ID:           a.ID,
		Title:        a.Title,
		SpaceKey:     spaceKeyFromExpandable(a.Expandable.Space),
		FileSize:     a.Extensions.FileSize,
		MediaType:    a.Extensions.MediaType,
		FileID:       a.Extensions.FileID,
		DownloadLink: a.Links.Download,
		Comment:      a.Extensions.Comment,
		Ancestors:    chain,
		Version: core.Version{
			Number:       a.Version.Number,
			When:         a.Version.When,
			FriendlyWhen: a.Version.FriendlyWhen,
			By: core.User{
				AccountID:   a.Version.By.AccountID,
				Username:    a.Version.By.Username,
				DisplayName: a.Version.By.DisplayName,
				PublicName:  a.Version.By.PublicName,
				Email:       a.Version.By.Email,
			},
		},
	}
}

// spaceKeyFromExpandable extracts the key from an _expandable space locator
// like "/rest/api/space/DEMO".
func spaceKeyFromExpandable(locator string) string {
	if locator == "" {
		return ""
	}
	parts := strings.Split(locator, "/")
	return parts[len(parts)-1]
}

func ancestorIDs(ancestors []ancestorJSON) []int64 {
	ids := make([]int64, 0, len(ancestors))
	for _, a := range ancestors {
		ids = append(ids, parseID(a.ID))
	}
	return ids
}

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}
