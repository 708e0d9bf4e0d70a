package fs

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/marginalia/pkg/core"
)

// frontmatter is the YAML header of a document file. Checksum is the hash
// of the markdown body at save time; a mismatch means the file was edited
// outside marginalia and the stored tree no longer describes it.
type frontmatter struct {
	Title     string    `yaml:"title"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Checksum  string    `yaml:"checksum,omitempty"`
}

// snapshotFile is the on-disk shape of a snapshot.
type snapshotFile struct {
	ID         string    `yaml:"id"`
	DocumentID string    `yaml:"document_id"`
	Trigger    string    `yaml:"trigger"`
	Label      string    `yaml:"label"`
	WordCount  int       `yaml:"word_count"`
	CreatedAt  time.Time `yaml:"created_at"`
	Markdown   string    `yaml:"markdown"`
	Tree       string    `yaml:"tree,omitempty"`
}

func checksum(body string) string {
	return strconv.FormatUint(xxhash.Sum64String(body), 16)
}

// serializeDocument renders d as a markdown file with YAML frontmatter.
func serializeDocument(d core.Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	fm := frontmatter{Title: d.Title, UpdatedAt: d.UpdatedAt.UTC(), Checksum: checksum(d.Markdown)}
	if err := encoder.Encode(fm); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(d.Markdown)
	return buf.Bytes(), nil
}

// parseDocument reads a document file. Files without frontmatter are taken
// as plain markdown. fresh reports whether the body still matches the
// checksum recorded at save time.
func parseDocument(data []byte) (d core.Document, fresh bool, err error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, []byte("---\n")) {
		return core.Document{Markdown: string(data)}, false, nil
	}

	rest := data[len("---\n"):]
	var header, body []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		body = rest[len("---\n"):]
	default:
		end := bytes.Index(rest, []byte("\n---\n"))
		if end < 0 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return core.Document{}, false, errors.New("frontmatter started but no closing delimiter found")
			}
			end = len(rest) - len("\n---")
			header = rest[:end]
		} else {
			header, body = rest[:end], rest[end+len("\n---\n"):]
		}
	}

	var fm frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return core.Document{}, false, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	d = core.Document{Title: fm.Title, UpdatedAt: fm.UpdatedAt, Markdown: string(body)}
	return d, fm.Checksum != "" && fm.Checksum == checksum(d.Markdown), nil
}

func serializeSnapshot(s core.Snapshot) ([]byte, error) {
	return yaml.Marshal(snapshotFile{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		Trigger:    string(s.Trigger),
		Label:      s.Label,
		WordCount:  s.WordCount,
		CreatedAt:  s.CreatedAt.UTC(),
		Markdown:   s.Markdown,
		Tree:       string(s.Tree),
	})
}

func parseSnapshot(data []byte) (core.Snapshot, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.Snapshot{}, fmt.Errorf("invalid snapshot yaml: %w", err)
	}
	trigger, err := core.ParseTrigger(f.Trigger)
	if err != nil {
		return core.Snapshot{}, err
	}
	s := core.Snapshot{
		ID:         f.ID,
		DocumentID: f.DocumentID,
		Trigger:    trigger,
		Label:      f.Label,
		Markdown:   f.Markdown,
		WordCount:  f.WordCount,
		CreatedAt:  f.CreatedAt,
	}
	if f.Tree != "" {
		s.Tree = []byte(f.Tree)
	}
	return s, nil
}
