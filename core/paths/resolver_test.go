package paths

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/confmark/confmark/core"
)

type fakeClient struct {
	pages  map[int64]*core.Page
	spaces map[string]*core.Space
}

func (f *fakeClient) PageByID(ctx context.Context, id int64) (*core.Page, error) {
	if p, ok := f.pages[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("page %d: %w", id, core.ErrNotFound)
}

func (f *fakeClient) SpaceByKey(ctx context.Context, key string) (*core.Space, error) {
	if s, ok := f.spaces[key]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("space %s: %w", key, core.ErrNotFound)
}

func (f *fakeClient) Spaces(ctx context.Context) ([]*core.Space, error) { return nil, nil }

func (f *fakeClient) DescendantIDs(ctx context.Context, pageID int64) ([]int64, error) {
	return nil, nil
}

func (f *fakeClient) PageIDByTitle(ctx context.Context, spaceKey, title string) (int64, error) {
	return 0, core.ErrNotFound
}

func (f *fakeClient) DownloadAttachment(ctx context.Context, downloadLink string) ([]byte, error) {
	return nil, core.ErrNotFound
}

func (f *fakeClient) UserByAccountID(ctx context.Context, accountID string) (*core.User, error) {
	return nil, core.ErrNotFound
}

func (f *fakeClient) IssueByKey(ctx context.Context, key string) (*core.Issue, error) {
	return nil, core.ErrNotFound
}

func newTestResolver(cfg *core.Config) *Resolver {
	client := &fakeClient{
		pages: map[int64]*core.Page{
			100: {ID: 100, Title: "Home", SpaceKey: "DOC"},
			200: {ID: 200, Title: "Guides", SpaceKey: "DOC", Ancestors: []int64{100}},
			300: {ID: 300, Title: "Install Guide", SpaceKey: "DOC", Ancestors: []int64{100, 200}},
		},
		spaces: map[string]*core.Space{
			"DOC": {Key: "DOC", Name: "Documentation", HomepageID: 100},
		},
	}
	return New(cfg, core.NewCache(client))
}

func TestPagePath(t *testing.T) {
	cfg := core.DefaultConfig()
	r := newTestResolver(cfg)
	ctx := context.Background()

	page := &core.Page{ID: 300, Title: "Install Guide", SpaceKey: "DOC", Ancestors: []int64{100, 200}}
	got, err := r.PagePath(ctx, page)
	if err != nil {
		t.Fatalf("PagePath: %v", err)
	}
	want := "Documentation/Home/Home/Guides/Install Guide.md"
	if got != want {
		t.Errorf("PagePath = %q, want %q", got, want)
	}

	// Pure function of entity fields: repeated calls agree.
	again, err := r.PagePath(ctx, page)
	if err != nil {
		t.Fatalf("PagePath: %v", err)
	}
	if again != got {
		t.Errorf("PagePath not deterministic: %q vs %q", got, again)
	}
}

func TestPagePathMissingSpaceDegrades(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.PagePath = "{space_key}/{page_title}.md"
	r := newTestResolver(cfg)

	page := &core.Page{ID: 1, Title: "Orphan", SpaceKey: "GONE"}
	got, err := r.PagePath(context.Background(), page)
	if err != nil {
		t.Fatalf("PagePath: %v", err)
	}
	if got != "GONE/Orphan.md" {
		t.Errorf("PagePath = %q, want %q", got, "GONE/Orphan.md")
	}
}

func TestAttachmentPath(t *testing.T) {
	cfg := core.DefaultConfig()
	r := newTestResolver(cfg)

	att := &core.Attachment{
		ID:        "att1",
		Title:     "screenshot.png",
		SpaceKey:  "DOC",
		FileID:    "abc-123",
		MediaType: "image/png",
		Ancestors: []int64{100, 300},
	}
	got, err := r.AttachmentPath(context.Background(), att)
	if err != nil {
		t.Fatalf("AttachmentPath: %v", err)
	}
	want := "Documentation/attachments/abc-123.png"
	if got != want {
		t.Errorf("AttachmentPath = %q, want %q", got, want)
	}
}

func TestRef(t *testing.T) {
	tests := []struct {
		name  string
		style core.LinkStyle
		from  string
		to    string
		want  string
	}{
		{
			name:  "same directory",
			style: core.LinkRelative,
			from:  "Space/Home/A.md",
			to:    "Space/Home/B.md",
			want:  "B.md",
		},
		{
			name:  "up and down",
			style: core.LinkRelative,
			from:  "Space/Home/Sub/A.md",
			to:    "Space/Home/Other/B.md",
			want:  "../Other/B.md",
		},
		{
			name:  "spaces percent encoded",
			style: core.LinkRelative,
			from:  "My Space/A.md",
			to:    "My Space/Install Guide.md",
			want:  "Install%20Guide.md",
		},
		{
			name:  "absolute style",
			style: core.LinkAbsolute,
			from:  "Space/Home/A.md",
			to:    "Space/Home/B.md",
			want:  "/Space/Home/B.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := core.DefaultConfig()
			cfg.LinkStyle = tt.style
			r := newTestResolver(cfg)
			if got := r.Ref(tt.from, tt.to); got != tt.want {
				t.Errorf("Ref(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cfg := core.DefaultConfig()
	r := newTestResolver(cfg)

	tests := []struct {
		in   string
		want string
	}{
		{"plain-name", "plain-name"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"trailing dots and spaces .. ", "trailing dots and spaces"},
		{"CON", "CON_"},
		{"con.txt", "con.txt_"},
		{"lpt1", "lpt1_"},
		{"console", "console"},
	}
	for _, tt := range tests {
		if got := r.Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLengthClampIsRuneAware(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.FilenameLength = 5
	r := newTestResolver(cfg)

	got := r.Sanitize("éééééééééé")
	if runes := []rune(got); len(runes) != 5 {
		t.Errorf("Sanitize clamped to %d runes, want 5 (%q)", len(runes), got)
	}
	if strings.Contains(got, "�") {
		t.Errorf("Sanitize produced an invalid rune boundary: %q", got)
	}
}

func TestSanitizeEncodeMap(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.FilenameEncoding = `" ":"%20"`
	r := newTestResolver(cfg)

	if got := r.Sanitize("a b"); got != "a%20b" {
		t.Errorf("Sanitize(%q) = %q, want %q", "a b", got, "a%20b")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in        string
		connector string
		want      string
	}{
		{"My Property!", "_", "my_property"},
		{"Review  Status", "_", "review_status"},
		{"123 steps", "_", "key_123_steps"},
		{"", "_", "key_"},
		{"Install Guide", "-", "install-guide"},
		{"already-fine", "-", "already-fine"},
	}
	for _, tt := range tests {
		if got := SanitizeKey(tt.in, tt.connector); got != tt.want {
			t.Errorf("SanitizeKey(%q, %q) = %q, want %q", tt.in, tt.connector, got, tt.want)
		}
	}
}
