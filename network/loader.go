package network

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/chrisuehlinger/vquery/dom"
)

// LoadDocument parses the HTML document at ref. An http or https URL is
// fetched with the client; anything else, including a file:// URL, is read
// from the local filesystem. The document URL is set to the resolved ref.
func (c *Client) LoadDocument(ctx context.Context, ref string) (*dom.Document, error) {
	if IsHTTPURL(ref) {
		resp, err := c.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("load %s: %s", ref, resp.Status)
		}
		doc, err := dom.ParseHTML(string(resp.Body))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", ref, err)
		}
		doc.SetURL(resp.URL.String())
		return doc, nil
	}

	path := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL: %w", err)
		}
		path = u.Path
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	doc, err := dom.ParseHTML(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref, err)
	}
	fileURL, err := FileURL(path)
	if err != nil {
		return nil, err
	}
	doc.SetURL(fileURL)
	return doc, nil
}
