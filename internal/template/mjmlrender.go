package template

import (
	"context"
	"fmt"
	"strings"

	mjmlgo "github.com/Boostport/mjml-go"
	"github.com/dispatchhq/notifyd/internal/domain"
)

// Block is a minimal MJML component tree node. Message.Body may carry a
// Block (as a map[string]any decoded from JSON) instead of plain text when
// the recipient is an HTML-capable email provider; RenderBlockTree compiles
// that tree to MJML and then to HTML.
type Block struct {
	Type     string         `json:"type"`
	Attrs    map[string]any `json:"attributes,omitempty"`
	Content  string         `json:"content,omitempty"`
	Children []Block        `json:"children,omitempty"`
}

// ParseBlock decodes a raw block-tree map (as produced by json.Unmarshal
// into map[string]any) into a Block.
func ParseBlock(raw map[string]any) (Block, error) {
	b := Block{}
	if t, ok := raw["type"].(string); ok {
		b.Type = t
	} else {
		return b, fmt.Errorf("block missing type")
	}
	if a, ok := raw["attributes"].(map[string]any); ok {
		b.Attrs = a
	}
	if c, ok := raw["content"].(string); ok {
		b.Content = c
	}
	if children, ok := raw["children"].([]any); ok {
		for _, c := range children {
			childMap, ok := c.(map[string]any)
			if !ok {
				continue
			}
			child, err := ParseBlock(childMap)
			if err != nil {
				return b, err
			}
			b.Children = append(b.Children, child)
		}
	}
	return b, nil
}

// ToMJML walks the block tree emitting an MJML document. Only the small set
// of components a notification body actually needs are recognized
// (mjml/mj-body/mj-wrapper/mj-section/mj-column/mj-text/mj-button/mj-image/
// mj-divider/mj-spacer); any other type falls back to mj-raw with its content
// written unescaped and its children dropped.
func (b Block) ToMJML() string {
	var sb strings.Builder
	writeBlock(&sb, b)
	return sb.String()
}

func writeBlock(sb *strings.Builder, b Block) {
	tag := b.Type
	if tag == "" {
		tag = "mj-raw"
	}

	attrs := renderAttrs(b.Attrs)

	switch tag {
	case "mjml", "mj-body", "mj-section", "mj-column", "mj-wrapper":
		fmt.Fprintf(sb, "<%s%s>", tag, attrs)
		for _, c := range b.Children {
			writeBlock(sb, c)
		}
		fmt.Fprintf(sb, "</%s>", tag)
	case "mj-text", "mj-button":
		fmt.Fprintf(sb, "<%s%s>%s</%s>", tag, attrs, b.Content, tag)
	case "mj-image", "mj-divider", "mj-spacer":
		fmt.Fprintf(sb, "<%s%s />", tag, attrs)
	default:
		fmt.Fprintf(sb, "<mj-raw>%s</mj-raw>", b.Content)
	}
}

func renderAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	var sb strings.Builder
	for k, v := range attrs {
		fmt.Fprintf(&sb, ` %s="%v"`, k, v)
	}
	return sb.String()
}

// RenderBlockTree compiles a Block tree to MJML and then to HTML via
// Boostport/mjml-go, giving email providers a rich HTML body alongside the
// plaintext alternative produced by the Liquid template.
func RenderBlockTree(ctx context.Context, root Block) (string, error) {
	mjmlSource := root.ToMJML()
	if !strings.HasPrefix(strings.TrimSpace(mjmlSource), "<mjml>") {
		mjmlSource = "<mjml><mj-body>" + mjmlSource + "</mj-body></mjml>"
	}

	html, err := mjmlgo.ToHTML(ctx, mjmlSource)
	if err != nil {
		return "", &domain.ErrTemplate{Name: "mjml", Reason: "compile failed", Err: err}
	}
	return html, nil
}
