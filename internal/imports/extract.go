package imports

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"tuning-backend/internal/feedback"
)

// Extraction is what an export yields once parsed.
type Extraction struct {
	Conversations int
	Messages      int
	Batch         feedback.Batch
}

type exportDoc struct {
	Conversations []conversation `json:"conversations"`
}

type conversation struct {
	ID        string     `json:"id"`
	Category  string     `json:"category"`
	Tags      []string   `json:"tags"`
	CreatedAt *time.Time `json:"createdAt"`
	Messages  []message  `json:"messages"`
}

type message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Timestamp  *time.Time     `json:"timestamp"`
	Feedback   *rawFeedback   `json:"feedback"`
	Refinement *rawRefinement `json:"refinement"`
}

type rawFeedback struct {
	Rating   string   `json:"rating"`
	Comment  string   `json:"comment"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type rawRefinement struct {
	Original string   `json:"original"`
	Refined  string   `json:"refined"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Extract parses a JSON export, JSON Lines or plain text. Content that starts
// like JSON but does not parse fails as a whole; nothing partial is returned.
// Rows without their own timestamp take importedAt.
func Extract(importID string, content []byte, importedAt time.Time, newID func() string) (Extraction, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(content, utf8BOM))
	if len(trimmed) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty content", ErrMalformedExport)
	}

	var convs []conversation
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &convs); err != nil {
			return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedExport, err)
		}
	case '{':
		parsed, err := decodeObjects(trimmed)
		if err != nil {
			return Extraction{}, err
		}
		convs = parsed
	default:
		convs = []conversation{plainText(string(trimmed))}
	}

	return flatten(importID, convs, importedAt, newID), nil
}

// decodeObjects reads one export document or a stream of conversation objects.
func decodeObjects(raw []byte) ([]conversation, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var values []json.RawMessage
	for {
		var v json.RawMessage
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedExport, len(values)+1, err)
		}
		values = append(values, v)
	}

	if len(values) == 1 {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(values[0], &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
		}
		if _, ok := probe["conversations"]; ok {
			var doc exportDoc
			if err := json.Unmarshal(values[0], &doc); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
			}
			return doc.Conversations, nil
		}
	}

	convs := make([]conversation, 0, len(values))
	for i, v := range values {
		var c conversation
		if err := json.Unmarshal(v, &c); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedExport, i+1, err)
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func plainText(s string) conversation {
	var c conversation
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.Messages = append(c.Messages, message{Content: line})
	}
	return c
}

func flatten(importID string, convs []conversation, importedAt time.Time, newID func() string) Extraction {
	out := Extraction{Conversations: len(convs)}
	for ci, c := range convs {
		convID := strings.TrimSpace(c.ID)
		if convID == "" {
			convID = fmt.Sprintf("%s:%d", importID, ci)
		}
		convAt := importedAt
		if c.CreatedAt != nil {
			convAt = c.CreatedAt.UTC()
		}

		out.Messages += len(c.Messages)
		for mi, m := range c.Messages {
			at := convAt
			if m.Timestamp != nil {
				at = m.Timestamp.UTC()
			}
			if fb := m.Feedback; fb != nil {
				out.Batch.Items = append(out.Batch.Items, feedback.Item{
					ID:             newID(),
					ImportID:       importID,
					ConversationID: convID,
					MessageIndex:   mi,
					Rating:         feedback.ParseRating(strings.ToLower(strings.TrimSpace(fb.Rating))),
					Category:       firstNonEmpty(fb.Category, c.Category),
					Tags:           mergeTags(c.Tags, fb.Tags),
					Comment:        strings.TrimSpace(fb.Comment),
					OccurredAt:     at,
				})
			}
			if rf := m.Refinement; rf != nil && strings.TrimSpace(rf.Refined) != "" {
				original := rf.Original
				if strings.TrimSpace(original) == "" {
					original = m.Content
				}
				out.Batch.Refinements = append(out.Batch.Refinements, feedback.Refinement{
					ID:             newID(),
					ImportID:       importID,
					ConversationID: convID,
					Category:       firstNonEmpty(rf.Category, c.Category),
					Tags:           mergeTags(c.Tags, rf.Tags),
					Original:       original,
					Refined:        rf.Refined,
					OccurredAt:     at,
				})
			}
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeTags lowercases and dedupes tags, keeping first-seen order.
func mergeTags(groups ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, g := range groups {
		for _, t := range g {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
