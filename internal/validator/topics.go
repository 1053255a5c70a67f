package validator

import (
	"fmt"
	"strings"

	"github.com/studyhub/assessment-service/internal/models"
)

// TopicPicker tracks an incremental grammar/vocabulary topic selection.
// Once the combined cap is reached every unselected topic in both
// categories becomes unselectable.
type TopicPicker struct {
	Grammar    []string
	Vocabulary []string
}

// NewTopicPicker starts from an existing selection.
func NewTopicPicker(grammar, vocabulary []string) *TopicPicker {
	return &TopicPicker{
		Grammar:    append([]string(nil), grammar...),
		Vocabulary: append([]string(nil), vocabulary...),
	}
}

// FromSelections splits an ordered selection into a picker, rejecting
// everything past the cap.
func FromSelections(selections []TopicSelection) (*TopicPicker, ValidationErrors) {
	picker := &TopicPicker{}
	var errs ValidationErrors
	for i, sel := range selections {
		if err := picker.Select(models.TopicCategory(sel.Category), sel.Name); err != nil {
			err.Field = fmt.Sprintf("topics[%d]", i)
			errs = append(errs, *err)
		}
	}
	return picker, errs
}

// Count returns the combined number of selected topics.
func (p *TopicPicker) Count() int {
	return len(p.Grammar) + len(p.Vocabulary)
}

// IsSelected reports whether the topic is already picked.
func (p *TopicPicker) IsSelected(category models.TopicCategory, name string) bool {
	list := p.list(category)
	if list == nil {
		return false
	}
	return indexOf(*list, name) >= 0
}

// Selectable reports whether the topic could be picked now.
func (p *TopicPicker) Selectable(category models.TopicCategory, name string) bool {
	if p.IsSelected(category, name) {
		return true
	}
	return p.list(category) != nil && p.Count() < models.MaxSelectedTopics
}

// Select adds a topic. It never drops an earlier selection to make room.
func (p *TopicPicker) Select(category models.TopicCategory, name string) *ValidationError {
	name = strings.TrimSpace(name)
	list := p.list(category)
	switch {
	case list == nil:
		return &ValidationError{Field: "category", Message: "must be one of: grammar, vocabulary", Value: category, Rule: "oneof"}
	case name == "":
		return &ValidationError{Field: "name", Message: "is required", Rule: "required"}
	case indexOf(*list, name) >= 0:
		return &ValidationError{Field: "name", Message: "topic already selected", Value: name, Rule: "topic_unique"}
	case p.Count() >= models.MaxSelectedTopics:
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("topic limit of %d reached", models.MaxSelectedTopics),
			Value:   name,
			Rule:    "topic_limit",
		}
	}
	*list = append(*list, name)
	return nil
}

// Deselect removes a topic and reports whether it was selected.
func (p *TopicPicker) Deselect(category models.TopicCategory, name string) bool {
	list := p.list(category)
	if list == nil {
		return false
	}
	idx := indexOf(*list, strings.TrimSpace(name))
	if idx < 0 {
		return false
	}
	*list = append((*list)[:idx], (*list)[idx+1:]...)
	return true
}

// Selections returns the picked topics, grammar first.
func (p *TopicPicker) Selections() []TopicSelection {
	out := make([]TopicSelection, 0, p.Count())
	for _, g := range p.Grammar {
		out = append(out, TopicSelection{Category: string(models.TopicGrammar), Name: g})
	}
	for _, v := range p.Vocabulary {
		out = append(out, TopicSelection{Category: string(models.TopicVocabulary), Name: v})
	}
	return out
}

func (p *TopicPicker) list(category models.TopicCategory) *[]string {
	switch category {
	case models.TopicGrammar:
		return &p.Grammar
	case models.TopicVocabulary:
		return &p.Vocabulary
	default:
		return nil
	}
}

func indexOf(values []string, name string) int {
	for i, v := range values {
		if strings.EqualFold(v, name) {
			return i
		}
	}
	return -1
}
