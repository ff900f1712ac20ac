package behavior

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// SupportedFormat is the BTCPP_format version understood by the XML reader.
const SupportedFormat = "4"

func parseXML(data []byte, source string) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  *element
		stack []*element
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			return nil, &DefinitionError{Source: source, Line: line, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := dec.InputPos()
			el := &element{tag: t.Name.Local, line: line, source: source}
			for _, a := range t.Attr {
				el.setAttr(a.Name.Local, a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, el.errorf(ErrMalformed, "more than one top-level element")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	if root == nil {
		return nil, &DefinitionError{Source: source, Err: fmt.Errorf("%w: empty document", ErrMalformed)}
	}
	return documentFromXML(root, source)
}

func documentFromXML(root *element, source string) (*document, error) {
	if root.tag != "root" {
		return nil, root.errorf(ErrMalformed, "top-level element must be <root>, got <%s>", root.tag)
	}
	doc := &document{source: source}
	doc.format, _ = root.attr("BTCPP_format")
	if doc.format != "" && doc.format != SupportedFormat {
		return nil, root.errorf(ErrMalformed, "unsupported BTCPP_format %q", doc.format)
	}
	doc.mainTree, _ = root.attr("main_tree_to_execute")

	for _, child := range root.children {
		switch child.tag {
		case "BehaviorTree":
			id, _ := child.attr("ID")
			if id == "" {
				return nil, child.errorf(ErrMalformed, "<BehaviorTree> without ID")
			}
			if len(child.children) != 1 {
				return nil, child.errorf(ErrMalformed, "tree %q must have exactly one root node, got %d", id, len(child.children))
			}
			doc.trees = append(doc.trees, &treeDef{
				id:     id,
				root:   child.children[0],
				source: source,
				line:   child.line,
			})
		case "include":
			doc.includes = append(doc.includes, child)
		case "TreeNodesModel":
		default:
			return nil, child.errorf(ErrMalformed, "unexpected <%s> under <root>", child.tag)
		}
	}
	return doc, nil
}
