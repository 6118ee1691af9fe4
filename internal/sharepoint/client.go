// File path: internal/sharepoint/client.go
package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicodishanthj/rfpassist/internal/common"
)

// DemoPDF is written by Download until a Graph integration exists.
const DemoPDF = "%PDF-1.4\n% Demo PDF placeholder. Drop real integration here."

// File is one entry of a remote document library listing.
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Config holds the Microsoft Graph app registration for a SharePoint site.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteID       string
}

// LoadConfig reads SP_TENANT_ID, SP_CLIENT_ID, SP_CLIENT_SECRET and SP_SITE_ID.
func LoadConfig() Config {
	return Config{
		TenantID:     strings.TrimSpace(os.Getenv("SP_TENANT_ID")),
		ClientID:     strings.TrimSpace(os.Getenv("SP_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("SP_CLIENT_SECRET")),
		SiteID:       strings.TrimSpace(os.Getenv("SP_SITE_ID")),
	}
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.SiteID != ""
}

// Client lists and downloads documents from a SharePoint library. Without
// credentials it serves a single demo entry.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Configured()
}

// List returns the library contents.
func (c *Client) List(ctx context.Context) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Configured() {
		return []File{{ID: "demo1", Name: "Sample_RFP.pdf", Size: 123456}}, nil
	}
	// TODO: list drive items through Microsoft Graph /sites/{site-id}/drive/root/children.
	common.Logger().Debug("sharepoint: graph listing not implemented", "site", c.cfg.SiteID)
	return []File{}, nil
}

// Lookup finds a listed file by id. Unlisted ids resolve to a PDF named
// after the id so downloads still work in configured mode.
func (c *Client) Lookup(ctx context.Context, id string) (File, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return File{}, errors.New("file id required")
	}
	files, err := c.List(ctx)
	if err != nil {
		return File{}, err
	}
	for _, f := range files {
		if f.ID == id {
			return f, nil
		}
	}
	return File{ID: id, Name: id + ".pdf"}, nil
}

// Download writes the file identified by id to destPath.
func (c *Client) Download(ctx context.Context, id, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if err := os.WriteFile(destPath, []byte(DemoPDF), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	common.Logger().Info("sharepoint: downloaded file", "id", id, "path", destPath, "configured", c.Configured())
	return nil
}
