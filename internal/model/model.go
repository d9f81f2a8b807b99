// Package model holds the quality-assurance hierarchy:
// Standard → Indicator → Topic → Activity → Document.
package model

import (
	"strconv"
	"time"
)

type Standard struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Indicator is a measurable criterion under a Standard, identified by a dotted code.
type Indicator struct {
	ID         int64  `json:"id"`
	StandardID int64  `json:"standard_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
}

// Topic is an optional grouping of Activities under an Indicator.
type Topic struct {
	ID          int64  `json:"id"`
	IndicatorID int64  `json:"indicator_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
}

type Activity struct {
	ID          int64  `json:"id"`
	IndicatorID int64  `json:"indicator_id"`
	TopicID     *int64 `json:"topic_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
}

type DocType string

const (
	DocPDF   DocType = "pdf"
	DocAlbum DocType = "album"
	DocLink  DocType = "link"
)

// Valid reports whether t is one of the known document types.
func (t DocType) Valid() bool {
	switch t {
	case DocPDF, DocAlbum, DocLink:
		return true
	}
	return false
}

// Document is an attached file, image album or external link.
// For albums FileURL mirrors Gallery[0].
type Document struct {
	ID          int64     `json:"id"`
	ActivityID  *int64    `json:"activity_id"`
	IndicatorID *int64    `json:"indicator_id"`
	Title       string    `json:"title"`
	DocType     DocType   `json:"doc_type"`
	FileURL     string    `json:"file_url"`
	Gallery     []string  `json:"gallery"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Cover returns the first gallery entry, or "" for an empty gallery.
func (d *Document) Cover() string {
	if len(d.Gallery) == 0 {
		return ""
	}
	return d.Gallery[0]
}

// SiblingKey identifies one ordered sibling list (topics of an indicator,
// activities of a topic, or topic-less activities of an indicator).
type SiblingKey struct {
	Kind     string // "topic" or "activity"
	ParentID int64
	ByTopic  bool
}

func (k SiblingKey) String() string {
	parent := "indicator"
	if k.ByTopic {
		parent = "topic"
	}
	return k.Kind + "/" + parent + "/" + strconv.FormatInt(k.ParentID, 10)
}

// TopicSiblings returns the key of the list a topic belongs to.
func TopicSiblings(t *Topic) SiblingKey {
	return SiblingKey{Kind: "topic", ParentID: t.IndicatorID}
}

// ActivitySiblings returns the key of the list an activity belongs to.
func ActivitySiblings(a *Activity) SiblingKey {
	if a.TopicID != nil {
		return SiblingKey{Kind: "activity", ParentID: *a.TopicID, ByTopic: true}
	}
	return SiblingKey{Kind: "activity", ParentID: a.IndicatorID}
}
