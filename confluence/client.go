// Package confluence implements core.ContentClient against the Confluence
// REST API (v1 content endpoints), plus issue lookups against a Jira REST
// endpoint for inline issue macros.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/confmark/confmark/core"
)

const (
	defaultTimeout   = 30 * time.Second
	attachmentPage   = 50
	descendantPage   = 100
	spacePage        = 50
	pageExpand       = "body.view,body.export_view,body.editor2,metadata.labels,ancestors"
	attachExpand     = "container.ancestors,version"
	defaultUserAgent = "confmark/1.0 (https://github.com/confmark/confmark)"
)

var pageURLPattern = regexp.MustCompile(`/wiki/.+?/pages/(\d+)`)

// Client talks to one Confluence site with basic authentication. An optional
// Jira base URL enables issue macro resolution; when empty, issue lookups
// return core.ErrNotFound and the rewriter falls back to key-only links.
type Client struct {
	baseURL  string
	jiraURL  string
	username string
	token    string
	http     *http.Client
}

// New creates a Client for the given site. baseURL is the site root, e.g.
// "https://example.atlassian.net/wiki".
func New(baseURL, jiraURL, username, token string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		jiraURL:  strings.TrimRight(jiraURL, "/"),
		username: username,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

// PageByID fetches a page with both body renderings, the editor2 source,
// labels, ancestors and the full attachment list.
func (c *Client) PageByID(ctx context.Context, id int64) (*core.Page, error) {
	var body pageJSON
	path := fmt.Sprintf("/rest/api/content/%d", id)
	if err := c.getJSON(ctx, c.baseURL+path, url.Values{"expand": {pageExpand}}, &body); err != nil {
		return nil, err
	}

	page := body.toPage()
	attachments, err := c.attachments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching attachments of page %d: %w", id, err)
	}
	page.Attachments = attachments
	return page, nil
}

// SpaceByKey fetches a space including its homepage id.
func (c *Client) SpaceByKey(ctx context.Context, key string) (*core.Space, error) {
	var body spaceJSON
	path := "/rest/api/space/" + url.PathEscape(key)
	if err := c.getJSON(ctx, c.baseURL+path, url.Values{"expand": {"homepage"}}, &body); err != nil {
		return nil, err
	}
	return body.toSpace(), nil
}

// Spaces enumerates all current global spaces.
func (c *Client) Spaces(ctx context.Context) ([]*core.Space, error) {
	params := url.Values{
		"type":   {"global"},
		"status": {"current"},
		"expand": {"homepage"},
		"limit":  {strconv.Itoa(spacePage)},
	}

	var spaces []*core.Space
	next := c.baseURL + "/rest/api/space"
	for next != "" {
		var body struct {
			Results []spaceJSON `json:"results"`
			Links   linksJSON   `json:"_links"`
		}
		if err := c.getJSON(ctx, next, params, &body); err != nil {
			return nil, err
		}
		for i := range body.Results {
			spaces = append(spaces, body.Results[i].toSpace())
		}
		next = c.nextURL(body.Links)
		params = nil
	}
	return spaces, nil
}

// DescendantIDs returns the transitive descendant page ids of a page via a
// paged CQL ancestor search.
func (c *Client) DescendantIDs(ctx context.Context, pageID int64) ([]int64, error) {
	params := url.Values{
		"cql":   {fmt.Sprintf("type=page AND ancestor=%d", pageID)},
		"limit": {strconv.Itoa(descendantPage)},
	}

	var ids []int64
	next := c.baseURL + "/rest/api/content/search"
	for next != "" {
		var body struct {
			Results []struct {
				ID string `json:"id"`
			} `json:"results"`
			Links linksJSON `json:"_links"`
		}
		if err := c.getJSON(ctx, next, params, &body); err != nil {
			return nil, err
		}
		for _, result := range body.Results {
			id, err := strconv.ParseInt(result.ID, 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		next = c.nextURL(body.Links)
		params = nil
	}
	return ids, nil
}

// PageIDByTitle resolves a space key and page title to a page id.
func (c *Client) PageIDByTitle(ctx context.Context, spaceKey, title string) (int64, error) {
	params := url.Values{
		"spaceKey": {spaceKey},
		"title":    {title},
	}
	var body struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/rest/api/content", params, &body); err != nil {
		return 0, err
	}
	if len(body.Results) == 0 {
		return 0, fmt.Errorf("page %q in space %s: %w", title, spaceKey, core.ErrNotFound)
	}
	return strconv.ParseInt(body.Results[0].ID, 10, 64)
}

// DownloadAttachment retrieves an attachment binary. downloadLink is the
// site-relative locator the attachment listing returned.
func (c *Client) DownloadAttachment(ctx context.Context, downloadLink string) ([]byte, error) {
	resp, err := c.get(ctx, c.baseURL+downloadLink, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// UserByAccountID resolves a user for mention rendering.
func (c *Client) UserByAccountID(ctx context.Context, accountID string) (*core.User, error) {
	var body struct {
		AccountID   string `json:"accountId"`
		Username    string `json:"username"`
		DisplayName string `json:"displayName"`
		PublicName  string `json:"publicName"`
		Email       string `json:"email"`
	}
	params := url.Values{"accountId": {accountID}}
	if err := c.getJSON(ctx, c.baseURL+"/rest/api/user", params, &body); err != nil {
		return nil, err
	}
	return &core.User{
		AccountID:   body.AccountID,
		Username:    body.Username,
		DisplayName: body.DisplayName,
		PublicName:  body.PublicName,
		Email:       body.Email,
	}, nil
}

// IssueByKey resolves a tracker issue for inline issue macros.
func (c *Client) IssueByKey(ctx context.Context, key string) (*core.Issue, error) {
	if c.jiraURL == "" {
		return nil, fmt.Errorf("issue %s: no issue tracker configured: %w", key, core.ErrNotFound)
	}
	var body struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Status      struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	path := "/rest/api/2/issue/" + url.PathEscape(key)
	if err := c.getJSON(ctx, c.jiraURL+path, url.Values{"fields": {"summary,description,status"}}, &body); err != nil {
		return nil, err
	}
	return &core.Issue{
		Key:         body.Key,
		Summary:     body.Fields.Summary,
		Description: body.Fields.Description,
		Status:      body.Fields.Status.Name,
	}, nil
}

// ResolvePageURL turns a browser page URL into a page id. It accepts the
// canonical /wiki/spaces/KEY/pages/ID form and the short /SPACE/Title form.
func (c *Client) ResolvePageURL(ctx context.Context, pageURL string) (int64, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return 0, fmt.Errorf("parsing page URL: %w", err)
	}
	path := strings.TrimRight(u.Path, "/")

	if m := pageURLPattern.FindStringSubmatch(path); m != nil {
		return strconv.ParseInt(m[1], 10, 64)
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 2 {
		spaceKey, err := url.QueryUnescape(parts[0])
		if err != nil {
			spaceKey = parts[0]
		}
		title, err := url.QueryUnescape(parts[1])
		if err != nil {
			title = parts[1]
		}
		return c.PageIDByTitle(ctx, spaceKey, title)
	}

	return 0, fmt.Errorf("unrecognized page URL %q", pageURL)
}

// attachments pages through a content's attachment listing.
func (c *Client) attachments(ctx context.Context, pageID int64) ([]core.Attachment, error) {
	var attachments []core.Attachment
	start := 0
	for {
		params := url.Values{
			"start":  {strconv.Itoa(start)},
			"limit":  {strconv.Itoa(attachmentPage)},
			"expand": {attachExpand},
		}
		var body struct {
			Results []attachmentJSON `json:"results"`
			Size    int              `json:"size"`
		}
		path := fmt.Sprintf("/rest/api/content/%d/child/attachment", pageID)
		if err := c.getJSON(ctx, c.baseURL+path, params, &body); err != nil {
			return nil, err
		}
		for i := range body.Results {
			attachments = append(attachments, body.Results[i].toAttachment())
		}
		if body.Size < attachmentPage {
			return attachments, nil
		}
		start += body.Size
	}
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", rawURL, core.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	resp, err := c.get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// nextURL resolves a paged listing's _links.next against the site base.
// Confluence returns a site-relative path there.
func (c *Client) nextURL(links linksJSON) string {
	if links.Next == "" {
		return ""
	}
	if strings.HasPrefix(links.Next, "http") {
		return links.Next
	}
	return c.baseURL + links.Next
}
