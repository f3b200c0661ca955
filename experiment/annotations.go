package experiment

import (
	"encoding/json"
	"regexp"
)

// Annotations is the sidecar record for one experiment: explicit tags plus
// a free-text comment. Tags written as #word inside the comment count as
// implicit tags.
type Annotations struct {
	Tags    []string `json:"tags"`
	Comment string   `json:"comment"`
}

// tagPattern matches a #word token; a candidate only counts as a tag if it
// contains at least one letter (checked separately, \w alone would accept
// pure digit runs like issue numbers).
var (
	tagPattern    = regexp.MustCompile(`#(\w+)`)
	letterPattern = regexp.MustCompile(`[a-zA-Z]`)
	wordChar      = regexp.MustCompile(`\w`)
)

// AddTag records an explicit tag. Adding an existing tag is a no-op.
func (a *Annotations) AddTag(tag string) {
	for _, t := range a.Tags {
		if t == tag {
			return
		}
	}
	a.Tags = append(a.Tags, tag)
}

// AllTags returns the union of explicit and comment-derived tags, explicit
// first, in insertion order.
func (a *Annotations) AllTags() []string {
	seen := make(map[string]bool, len(a.Tags))
	out := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range a.commentTags() {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// HasTag reports whether any of the given tags is present. An empty
// argument list matches everything.
func (a *Annotations) HasTag(tags ...string) bool {
	if len(tags) == 0 {
		return true
	}
	all := a.AllTags()
	for _, want := range tags {
		for _, t := range all {
			if t == want {
				return true
			}
		}
	}
	return false
}

// commentTags scans the comment for #word tokens at token boundaries.
func (a *Annotations) commentTags() []string {
	var tags []string
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(a.Comment, -1) {
		// token boundary: the # must not follow a word character
		if loc[0] > 0 && wordChar.MatchString(a.Comment[loc[0]-1:loc[0]]) {
			continue
		}
		tag := a.Comment[loc[2]:loc[3]]
		if !letterPattern.MatchString(tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// Serialize converts the annotations to their JSON document. The persisted
// tag list is the derived union so that loaded experiments can be filtered
// by comment-derived tags as well.
func (a *Annotations) Serialize() ([]byte, error) {
	doc := Annotations{Tags: a.AllTags(), Comment: a.Comment}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return json.MarshalIndent(&doc, "", "  ")
}

// DeserializeAnnotations is the inverse of Serialize.
func DeserializeAnnotations(raw []byte) (*Annotations, error) {
	var a Annotations
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
