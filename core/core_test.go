package core

import "testing"

func TestAttachmentExtension(t *testing.T) {
	tests := []struct {
		name string
		att  Attachment
		want string
	}{
		{
			name: "drawio source",
			att:  Attachment{Comment: "draw.io diagram", MediaType: "application/vnd.jgraph.mxfile"},
			want: ".drawio",
		},
		{
			name: "drawio preview",
			att:  Attachment{Comment: "draw.io preview", MediaType: "image/png"},
			want: ".drawio.png",
		},
		{
			name: "png",
			att:  Attachment{MediaType: "image/png"},
			want: ".png",
		},
		{
			name: "jpeg pinned",
			att:  Attachment{MediaType: "image/jpeg"},
			want: ".jpg",
		},
		{
			name: "plain text pinned",
			att:  Attachment{MediaType: "text/plain"},
			want: ".txt",
		},
		{
			name: "unknown media type",
			att:  Attachment{MediaType: "application/x-nonexistent-thing"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.att.Extension(); got != tt.want {
				t.Errorf("Extension() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttachmentFilename(t *testing.T) {
	att := Attachment{FileID: "abc-123", MediaType: "image/png"}
	if got := att.Filename(); got != "abc-123.png" {
		t.Errorf("Filename() = %q, want %q", got, "abc-123.png")
	}
}

func TestAttachmentLookups(t *testing.T) {
	page := &Page{
		Attachments: []Attachment{
			{ID: "att1001", Title: "diagram", FileID: "file-aaa"},
			{ID: "att1002", Title: "diagram", FileID: ""},
			{ID: "att1003", Title: "photo", FileID: "file-bbb"},
		},
	}

	if got := page.AttachmentByFileID("file-bbb"); got == nil || got.ID != "att1003" {
		t.Errorf("AttachmentByFileID(file-bbb) = %v, want att1003", got)
	}
	if got := page.AttachmentByFileID(""); got != nil {
		t.Errorf("AttachmentByFileID(empty) = %v, want nil", got)
	}

	// Plain ids match even when the attachment carries no file id.
	if got := page.AttachmentByID("att1002"); got == nil || got.ID != "att1002" {
		t.Errorf("AttachmentByID(att1002) = %v, want att1002", got)
	}
	if got := page.AttachmentByID("file-aaa"); got == nil || got.ID != "att1001" {
		t.Errorf("AttachmentByID(file-aaa) = %v, want att1001 via file id fallback", got)
	}
	if got := page.AttachmentByID("nope"); got != nil {
		t.Errorf("AttachmentByID(nope) = %v, want nil", got)
	}

	if got := page.AttachmentsByTitle("diagram"); len(got) != 2 {
		t.Errorf("AttachmentsByTitle(diagram) returned %d attachments, want 2", len(got))
	}
}
