package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/confmark/confmark/core"
	"github.com/confmark/confmark/core/output"
)

type fakeClient struct {
	pages       map[int64]*core.Page
	descendants map[int64][]int64
	downloads   map[string]int
	fetched     []int64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:       map[int64]*core.Page{},
		descendants: map[int64][]int64{},
		downloads:   map[string]int{},
	}
}

func (f *fakeClient) addPage(id int64, title string) *core.Page {
	p := &core.Page{ID: id, Title: title, SpaceKey: "DOC", Body: "<p>body of " + title + "</p>"}
	f.pages[id] = p
	return p
}

func (f *fakeClient) PageByID(ctx context.Context, id int64) (*core.Page, error) {
	f.fetched = append(f.fetched, id)
	if p, ok := f.pages[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("page %d: %w", id, core.ErrNotFound)
}

func (f *fakeClient) SpaceByKey(ctx context.Context, key string) (*core.Space, error) {
	return &core.Space{Key: key, Name: "Documentation", HomepageID: 1}, nil
}

func (f *fakeClient) Spaces(ctx context.Context) ([]*core.Space, error) {
	return []*core.Space{{Key: "DOC", Name: "Documentation", HomepageID: 1}}, nil
}

func (f *fakeClient) DescendantIDs(ctx context.Context, pageID int64) ([]int64, error) {
	return f.descendants[pageID], nil
}

func (f *fakeClient) PageIDByTitle(ctx context.Context, spaceKey, title string) (int64, error) {
	return 0, core.ErrNotFound
}

func (f *fakeClient) DownloadAttachment(ctx context.Context, downloadLink string) ([]byte, error) {
	f.downloads[downloadLink]++
	return []byte("binary"), nil
}

func (f *fakeClient) UserByAccountID(ctx context.Context, accountID string) (*core.User, error) {
	return nil, core.ErrNotFound
}

func (f *fakeClient) IssueByKey(ctx context.Context, key string) (*core.Issue, error) {
	return nil, core.ErrNotFound
}

func testConfig(dir string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.OutputDir = dir
	cfg.PagePath = "{page_id}.md"
	cfg.AttachmentPath = "attachments/{attachment_file_id}{attachment_extension}"
	return cfg
}

func newTestExporter(t *testing.T, client *fakeClient) (*Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	writer, err := output.New(cfg.OutputDir)
	if err != nil {
		t.Fatalf("output.New: %v", err)
	}
	return New(core.NewCache(client), cfg, writer), dir
}

func TestExportPageWritesMarkdown(t *testing.T) {
	client := newFakeClient()
	client.addPage(10, "Hello")
	exporter, dir := newTestExporter(t, client)

	if err := exporter.ExportPage(context.Background(), 10); err != nil {
		t.Fatalf("ExportPage: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "10.md"))
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	if got := string(data); !strings.Contains(got, "body of Hello") {
		t.Errorf("exported Markdown missing body:\n%s", got)
	}
}

func TestExportPageNotFound(t *testing.T) {
	exporter, _ := newTestExporter(t, newFakeClient())
	if err := exporter.ExportPage(context.Background(), 404); err == nil {
		t.Fatal("ExportPage on missing page = nil, want error")
	}
}

func TestExportReferencedAttachmentOnly(t *testing.T) {
	client := newFakeClient()
	page := client.addPage(10, "Hello")
	page.Body = `<p>see file-ref-1</p>`
	page.Attachments = []core.Attachment{
		{ID: "a1", Title: "used.png", SpaceKey: "DOC", FileID: "file-ref-1",
			MediaType: "image/png", DownloadLink: "/download/a1"},
		{ID: "a2", Title: "unused.png", SpaceKey: "DOC", FileID: "file-ref-2",
			MediaType: "image/png", DownloadLink: "/download/a2"},
	}
	exporter, dir := newTestExporter(t, client)

	if err := exporter.ExportPage(context.Background(), 10); err != nil {
		t.Fatalf("ExportPage: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "attachments", "file-ref-1.png")); err != nil {
		t.Errorf("referenced attachment not exported: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "attachments", "file-ref-2.png")); err == nil {
		t.Error("unreferenced attachment exported")
	}
	if client.downloads["/download/a2"] != 0 {
		t.Error("unreferenced attachment downloaded")
	}
}

func TestExportAllAttachmentsPolicy(t *testing.T) {
	client := newFakeClient()
	page := client.addPage(10, "Hello")
	page.Attachments = []core.Attachment{
		{ID: "a2", Title: "unused.png", SpaceKey: "DOC", FileID: "file-ref-2",
			MediaType: "image/png", DownloadLink: "/download/a2"},
	}
	exporter, dir := newTestExporter(t, client)
	exporter.cfg.AttachmentExportAll = true

	if err := exporter.ExportPage(context.Background(), 10); err != nil {
		t.Fatalf("ExportPage: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "attachments", "file-ref-2.png")); err != nil {
		t.Errorf("export-all must export unreferenced attachments: %v", err)
	}
}

func TestExportDrawioAttachmentReferences(t *testing.T) {
	client := newFakeClient()
	page := client.addPage(10, "Diagrams")
	page.Body = `<div data-macro-parameters="|diagramName=flow|"></div>`
	page.BodyExport = `<img src="flow%20chart.png">`
	page.Attachments = []core.Attachment{
		{ID: "a1", Title: "flow", SpaceKey: "DOC", FileID: "src-1",
			Comment: "draw.io diagram", MediaType: "application/vnd.jgraph.mxfile", DownloadLink: "/d/a1"},
		{ID: "a2", Title: "flow chart", SpaceKey: "DOC", FileID: "prev-1",
			Comment: "draw.io preview", MediaType: "image/png", DownloadLink: "/d/a2"},
	}
	exporter, dir := newTestExporter(t, client)

	if err := exporter.ExportPage(context.Background(), 10); err != nil {
		t.Fatalf("ExportPage: %v", err)
	}
	// Source matched by macro parameter, preview by percent-encoded title in
	// the export rendering.
	if _, err := os.Stat(filepath.Join(dir, "attachments", "src-1.drawio")); err != nil {
		t.Errorf("diagram source not exported: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "attachments", "prev-1.drawio.png")); err != nil {
		t.Errorf("diagram preview not exported: %v", err)
	}
}

func TestExportSkipsExistingAttachment(t *testing.T) {
	client := newFakeClient()
	page := client.addPage(10, "Hello")
	page.Body = `<p>file-ref-1</p>`
	page.Attachments = []core.Attachment{
		{ID: "a1", Title: "used.png", SpaceKey: "DOC", FileID: "file-ref-1",
			MediaType: "image/png", DownloadLink: "/download/a1"},
	}
	exporter, _ := newTestExporter(t, client)
	ctx := context.Background()

	if err := exporter.ExportPage(ctx, 10); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if err := exporter.ExportPage(ctx, 10); err != nil {
		t.Fatalf("second export: %v", err)
	}

	if got := client.downloads["/download/a1"]; got != 1 {
		t.Errorf("attachment downloaded %d times across re-runs, want 1", got)
	}
}

func TestExportTreeOrderAndIgnore(t *testing.T) {
	client := newFakeClient()
	for _, id := range []int64{1, 2, 3, 4, 5} {
		client.addPage(id, fmt.Sprintf("Page %d", id))
	}
	client.descendants[1] = []int64{5, 3, 2, 4}
	client.descendants[3] = []int64{4}

	exporter, dir := newTestExporter(t, client)
	if err := exporter.ExportTree(context.Background(), 1, []int64{3}); err != nil {
		t.Fatalf("ExportTree: %v", err)
	}

	// 3 is ignored and takes its descendant 4 with it.
	for _, id := range []int64{1, 2, 5} {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%d.md", id))); err != nil {
			t.Errorf("page %d not exported: %v", id, err)
		}
	}
	for _, id := range []int64{3, 4} {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%d.md", id))); err == nil {
			t.Errorf("ignored page %d was exported", id)
		}
	}

	// Ascending id order for reproducible runs.
	want := []int64{1, 2, 5}
	if len(client.fetched) != len(want) {
		t.Fatalf("fetched %v, want %v", client.fetched, want)
	}
	for i, id := range want {
		if client.fetched[i] != id {
			t.Fatalf("fetch order %v, want %v", client.fetched, want)
		}
	}
}

func TestExportTreeContinuesPastBadPage(t *testing.T) {
	client := newFakeClient()
	client.addPage(1, "Root")
	client.addPage(3, "Leaf")
	client.descendants[1] = []int64{2, 3} // 2 does not exist

	exporter, dir := newTestExporter(t, client)
	if err := exporter.ExportTree(context.Background(), 1, nil); err != nil {
		t.Fatalf("ExportTree: %v", err)
	}
	for _, id := range []int64{1, 3} {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%d.md", id))); err != nil {
			t.Errorf("page %d not exported: %v", id, err)
		}
	}
}

func TestExportSpace(t *testing.T) {
	client := newFakeClient()
	client.addPage(1, "Home")
	client.addPage(2, "Child")
	client.descendants[1] = []int64{2}

	exporter, dir := newTestExporter(t, client)
	if err := exporter.ExportSpace(context.Background(), "DOC"); err != nil {
		t.Fatalf("ExportSpace: %v", err)
	}
	for _, id := range []int64{1, 2} {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%d.md", id))); err != nil {
			t.Errorf("page %d not exported: %v", id, err)
		}
	}
}
