package doc

import (
	"regexp"
	"strconv"
	"strings"
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Markdown renders the document as markdown text.
func (d *Doc) Markdown() string {
	md := strings.TrimSpace(renderNode(d.tree(), "", 0)) + "\n"
	return excessNewlines.ReplaceAllString(md, "\n\n")
}

func renderChildren(n *jsonNode, indent string) string {
	var b strings.Builder
	for _, c := range n.Content {
		b.WriteString(renderNode(c, indent, 0))
	}
	return b.String()
}

func renderNode(n *jsonNode, indent string, listNum int) string {
	if n.Type == typeText {
		return renderText(n)
	}
	attrs := Attrs(n.Attrs)
	switch NodeType(n.Type) {
	case TypeParagraph:
		return renderChildren(n, indent) + "\n\n"
	case TypeHeading:
		level, ok := attrs.Int("level")
		if !ok || level < 1 {
			level = 1
		}
		return strings.Repeat("#", level) + " " + renderChildren(n, indent) + "\n\n"
	case TypeBulletList, TypeTaskList:
		return renderChildren(n, indent)
	case TypeOrderedList:
		var b strings.Builder
		for i, c := range n.Content {
			b.WriteString(renderNode(c, indent, i+1))
		}
		return b.String()
	case TypeListItem:
		bullet := "- "
		if listNum > 0 {
			bullet = strconv.Itoa(listNum) + ". "
		}
		return indent + bullet + strings.TrimSpace(renderChildren(n, indent)) + "\n"
	case TypeTaskItem:
		check := " "
		if attrs.Bool("checked") {
			check = "x"
		}
		return indent + "- [" + check + "] " + strings.TrimSpace(renderChildren(n, indent)) + "\n"
	case TypeBlockquote, TypeCallout:
		var lines []string
		for _, l := range strings.Split(renderChildren(n, indent), "\n") {
			if l != "" {
				lines = append(lines, "> "+l)
			}
		}
		return strings.Join(lines, "\n") + "\n\n"
	case TypeCodeBlock:
		return "```\n" + renderChildren(n, indent) + "\n```\n\n"
	case TypeHorizontalRule:
		return "---\n\n"
	case TypeTable:
		return renderTable(n) + "\n\n"
	case TypeHardBreak:
		return "  \n"
	case TypeImage, TypeGeneratedImage:
		if src := attrs.String("src"); src != "" {
			return "![" + attrs.String("alt") + "](" + src + ")\n\n"
		}
		return ""
	case TypeInlineImage:
		if src := attrs.String("src"); src != "" {
			return "![" + attrs.String("alt") + "](" + src + ")"
		}
		return ""
	default:
		return renderChildren(n, indent)
	}
}

func renderText(n *jsonNode) string {
	text := n.Text
	for _, m := range n.Marks {
		switch m.Type {
		case "bold":
			text = "**" + text + "**"
		case "italic":
			text = "*" + text + "*"
		case "strike":
			text = "~~" + text + "~~"
		case "code":
			text = "`" + text + "`"
		case "link":
			href, _ := m.Attrs["href"].(string)
			text = "[" + text + "](" + href + ")"
		case "underline":
			text = "<u>" + text + "</u>"
		case "highlight":
			text = "==" + text + "=="
		}
	}
	return text
}

func renderTable(n *jsonNode) string {
	var lines []string
	for ri, row := range n.Content {
		cells := make([]string, 0, len(row.Content))
		for _, cell := range row.Content {
			var b strings.Builder
			for _, c := range cell.Content {
				b.WriteString(renderNode(c, "", 0))
			}
			cells = append(cells, strings.TrimSpace(b.String()))
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if ri == 0 {
			sep := make([]string, len(cells))
			for i := range sep {
				sep[i] = "---"
			}
			lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

var atxHeading = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// FromMarkdown imports markdown text. Only ATX headings, paragraphs and
// horizontal rules are recognised; everything else becomes paragraph text.
func FromMarkdown(md string) (*Doc, error) {
	var blocks []Fragment
	var para []string
	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, Paragraph(Text(strings.Join(para, " "))))
			para = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case trimmed == "---" || trimmed == "***":
			flush()
			blocks = append(blocks, Leaf(TypeHorizontalRule, nil))
		case atxHeading.MatchString(trimmed):
			flush()
			m := atxHeading.FindStringSubmatch(trimmed)
			blocks = append(blocks, Heading(len(m[1]), Text(strings.TrimSpace(m[2]))))
		default:
			para = append(para, trimmed)
		}
	}
	flush()
	if len(blocks) == 0 {
		return Default(), nil
	}
	return New(blocks...)
}
