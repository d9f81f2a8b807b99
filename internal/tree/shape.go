// Package tree loads the quality-assurance hierarchy and shapes it into the
// nested views served to visitors and the admin dashboard.
package tree

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"qa-portal/internal/model"
)

// Shape selects which hierarchy levels a view contains.
// Topics implies Activities.
type Shape struct {
	Topics     bool
	Activities bool
}

var (
	// Full is Indicator → Topics → Activities → Documents.
	Full = Shape{Topics: true, Activities: true}
	// ActivitiesOnly skips the topic level.
	ActivitiesOnly = Shape{Activities: true}
	// Flat is the two-tier Indicator → Documents view.
	Flat = Shape{}
)

// ParseShape maps a query value to a Shape. Empty means Full.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "", "full":
		return Full, nil
	case "activities":
		return ActivitiesOnly, nil
	case "flat":
		return Flat, nil
	}
	return Shape{}, fmt.Errorf("unknown shape %q (want full, activities or flat)", s)
}

func (s Shape) String() string {
	switch {
	case s.Topics:
		return "full"
	case s.Activities:
		return "activities"
	}
	return "flat"
}

type ActivityNode struct {
	model.Activity
	Documents []model.Document `json:"documents"`
}

type TopicNode struct {
	model.Topic
	Activities []ActivityNode `json:"activities"`
}

// IndicatorNode holds whichever child levels the shape selects. In the full
// shape Activities and Documents carry only topic-less activities and
// activity-less documents.
type IndicatorNode struct {
	model.Indicator
	Topics     []TopicNode      `json:"topics,omitempty"`
	Activities []ActivityNode   `json:"activities,omitempty"`
	Documents  []model.Document `json:"documents"`
}

type StandardNode struct {
	model.Standard
	Indicators []IndicatorNode `json:"indicators"`
}

// Snapshot is one shaped read of the hierarchy.
type Snapshot struct {
	Standards []StandardNode `json:"standards"`
	Shape     string         `json:"shape"`
	Stale     bool           `json:"stale"`
	LoadedAt  time.Time      `json:"loaded_at"`
}

// Rows is the flat result of one hierarchical read, one slice per level.
type Rows struct {
	Standards  []model.Standard
	Indicators []model.Indicator
	Topics     []model.Topic
	Activities []model.Activity
	Documents  []model.Document
}

// Build joins rows by foreign key and sorts every level deterministically.
func Build(rows Rows, shape Shape) []StandardNode {
	if shape.Topics {
		shape.Activities = true
	}

	topicIDs := make(map[int64]bool, len(rows.Topics))
	for _, t := range rows.Topics {
		topicIDs[t.ID] = true
	}
	activityIndicator := make(map[int64]int64, len(rows.Activities))
	for _, a := range rows.Activities {
		activityIndicator[a.ID] = a.IndicatorID
	}

	// Documents grouped by the node they hang under.
	docsByActivity := map[int64][]model.Document{}
	docsByIndicator := map[int64][]model.Document{}
	for _, d := range rows.Documents {
		switch {
		case d.ActivityID != nil && shape.Activities:
			if _, ok := activityIndicator[*d.ActivityID]; ok {
				docsByActivity[*d.ActivityID] = append(docsByActivity[*d.ActivityID], d)
			}
		case d.ActivityID != nil:
			if ind, ok := activityIndicator[*d.ActivityID]; ok {
				docsByIndicator[ind] = append(docsByIndicator[ind], d)
			} else if d.IndicatorID != nil {
				docsByIndicator[*d.IndicatorID] = append(docsByIndicator[*d.IndicatorID], d)
			}
		case d.IndicatorID != nil:
			docsByIndicator[*d.IndicatorID] = append(docsByIndicator[*d.IndicatorID], d)
		}
	}

	activityNode := func(a model.Activity) ActivityNode {
		docs := docsByActivity[a.ID]
		sortDocuments(docs)
		return ActivityNode{Activity: a, Documents: nonNil(docs)}
	}

	actsByTopic := map[int64][]model.Activity{}
	actsByIndicator := map[int64][]model.Activity{}
	if shape.Activities {
		for _, a := range rows.Activities {
			if shape.Topics && a.TopicID != nil && topicIDs[*a.TopicID] {
				actsByTopic[*a.TopicID] = append(actsByTopic[*a.TopicID], a)
				continue
			}
			actsByIndicator[a.IndicatorID] = append(actsByIndicator[a.IndicatorID], a)
		}
	}

	topicsByIndicator := map[int64][]model.Topic{}
	if shape.Topics {
		for _, t := range rows.Topics {
			topicsByIndicator[t.IndicatorID] = append(topicsByIndicator[t.IndicatorID], t)
		}
	}

	indicatorsByStandard := map[int64][]model.Indicator{}
	for _, ind := range rows.Indicators {
		indicatorsByStandard[ind.StandardID] = append(indicatorsByStandard[ind.StandardID], ind)
	}

	standards := slices.Clone(rows.Standards)
	slices.SortStableFunc(standards, func(a, b model.Standard) int { return cmpInt64(a.ID, b.ID) })

	out := make([]StandardNode, 0, len(standards))
	for _, st := range standards {
		inds := indicatorsByStandard[st.ID]
		SortIndicators(inds)

		nodes := make([]IndicatorNode, 0, len(inds))
		for _, ind := range inds {
			node := IndicatorNode{Indicator: ind}
			if shape.Topics {
				topics := topicsByIndicator[ind.ID]
				sortTopics(topics)
				node.Topics = make([]TopicNode, 0, len(topics))
				for _, t := range topics {
					acts := actsByTopic[t.ID]
					sortActivities(acts)
					tn := TopicNode{Topic: t, Activities: make([]ActivityNode, 0, len(acts))}
					for _, a := range acts {
						tn.Activities = append(tn.Activities, activityNode(a))
					}
					node.Topics = append(node.Topics, tn)
				}
			}
			if shape.Activities {
				acts := actsByIndicator[ind.ID]
				sortActivities(acts)
				for _, a := range acts {
					node.Activities = append(node.Activities, activityNode(a))
				}
			}
			docs := docsByIndicator[ind.ID]
			sortDocuments(docs)
			node.Documents = nonNil(docs)
			nodes = append(nodes, node)
		}
		out = append(out, StandardNode{Standard: st, Indicators: nodes})
	}
	return out
}

// SortIndicators orders indicators by code with numeric-aware collation
// ("2.1" < "2.2" < "2.10"), ties by id.
func SortIndicators(inds []model.Indicator) {
	// A Collator is not safe for concurrent use.
	c := collate.New(language.Und, collate.Numeric)
	slices.SortStableFunc(inds, func(a, b model.Indicator) int {
		if r := c.CompareString(a.Code, b.Code); r != 0 {
			return r
		}
		return cmpInt64(a.ID, b.ID)
	})
}

func sortTopics(ts []model.Topic) {
	slices.SortStableFunc(ts, func(a, b model.Topic) int {
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex - b.OrderIndex
		}
		return cmpInt64(a.ID, b.ID)
	})
}

func sortActivities(as []model.Activity) {
	slices.SortStableFunc(as, func(a, b model.Activity) int {
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex - b.OrderIndex
		}
		return cmpInt64(a.ID, b.ID)
	})
}

func sortDocuments(ds []model.Document) {
	slices.SortStableFunc(ds, func(a, b model.Document) int { return cmpInt64(a.ID, b.ID) })
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func nonNil(ds []model.Document) []model.Document {
	if ds == nil {
		return []model.Document{}
	}
	return ds
}
