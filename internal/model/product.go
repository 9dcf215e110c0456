package model

import "time"

// ContentType identifies how a raw document's text should be read.
type ContentType string

const (
	ContentTypeHTML    ContentType = "html"
	ContentTypePDFText ContentType = "pdf_text"
)

// Valid reports whether the content type is one the extractor understands.
func (c ContentType) Valid() bool {
	return c == ContentTypeHTML || c == ContentTypePDFText
}

// Product is a vendor laser product. Identified by (vendor, segment, name).
type Product struct {
	ID        string    `json:"id"`
	Vendor    string    `json:"vendor"`
	Segment   string    `json:"segment"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RawDocument is one fetched page or datasheet for a product.
type RawDocument struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"product_id"`
	ContentType ContentType `json:"content_type"`
	SourceURL   string      `json:"source_url,omitempty"`
	Text        string      `json:"text"`
	RawSpecs    RawSpecMap  `json:"raw_specs,omitempty"` // pre-extracted by the fetch layer
	FetchedAt   time.Time   `json:"fetched_at"`
}
