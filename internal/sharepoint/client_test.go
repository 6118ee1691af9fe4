package sharepoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDemoModeListsSampleFile(t *testing.T) {
	client := NewClient(Config{TenantID: "t"})
	files, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0] != (File{ID: "demo1", Name: "Sample_RFP.pdf", Size: 123456}) {
		t.Fatalf("unexpected demo listing: %+v", files)
	}
}

func TestConfiguredModeListsNothing(t *testing.T) {
	t.Setenv("SP_TENANT_ID", "tenant")
	t.Setenv("SP_CLIENT_ID", "client")
	t.Setenv("SP_CLIENT_SECRET", "secret")
	t.Setenv("SP_SITE_ID", "site")
	client := NewClient(LoadConfig())
	if !client.Configured() {
		t.Fatalf("expected configured client")
	}
	files, err := client.List(context.Background())
	if err != nil || len(files) != 0 {
		t.Fatalf("expected empty listing, got %+v (%v)", files, err)
	}
	f, err := client.Lookup(context.Background(), "abc")
	if err != nil || f.Name != "abc.pdf" {
		t.Fatalf("unexpected lookup: %+v %v", f, err)
	}
}

func TestDownloadWritesPlaceholder(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "remote", "demo1.pdf")
	if err := NewClient(Config{}).Download(context.Background(), "demo1", dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != DemoPDF {
		t.Fatalf("unexpected content: %q", data)
	}
}
