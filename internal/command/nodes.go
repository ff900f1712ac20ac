package command

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/btrun/internal/behavior"
	"github.com/joeycumines/btrun/internal/config"
)

// NodesCommand lists the node models a tree definition can use.
type NodesCommand struct {
	*BaseCommand
	config  *config.Config
	xml     bool
	builtin bool
}

// NewNodesCommand creates a new nodes command.
func NewNodesCommand(cfg *config.Config) *NodesCommand {
	return &NodesCommand{
		BaseCommand: NewBaseCommand(
			"nodes",
			"List registered node models",
			"nodes [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the nodes command.
func (c *NodesCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.xml, "xml", false, "Emit a TreeNodesModel XML document")
	fs.BoolVar(&c.builtin, "builtin", false, "Include the builtin nodes")
}

// Execute lists the manifests of the tutorial nodes, and optionally the
// builtins.
func (c *NodesCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	schema := config.DefaultSchema()
	s, err := schema.ResolveSettings(c.config, c.Name())
	if err != nil {
		return err
	}
	logger, err := resolveLogger("", "", s, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	f, err := newFactory(s, logger.Logger, io.Discard)
	if err != nil {
		return err
	}
	var manifests []behavior.Manifest
	for _, m := range f.Manifests() {
		if c.builtin || !m.Builtin {
			manifests = append(manifests, m)
		}
	}

	if c.xml || schema.ResolveBool(c.config, c.Name(), "xml") {
		return writeNodesModel(stdout, manifests)
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tPORTS")
	for _, m := range manifests {
		ports := make([]string, 0, len(m.Ports))
		for _, p := range m.Ports {
			port := strings.TrimSuffix(p.Direction.String(), "_port") + ":" + p.Name
			if p.Default != "" {
				port += "=" + p.Default
			}
			ports = append(ports, port)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Kind, strings.Join(ports, " "))
	}
	return w.Flush()
}

type nodesModelXML struct {
	XMLName xml.Name      `xml:"root"`
	Format  string        `xml:"BTCPP_format,attr"`
	Model   treeModelsXML `xml:"TreeNodesModel"`
}

type treeModelsXML struct {
	Nodes []nodeModelXML
}

// nodeModelXML is named by its kind, e.g. <Action ID="..."/>.
type nodeModelXML struct {
	XMLName xml.Name
	ID      string `xml:"ID,attr"`
	Ports   []portModelXML
}

// portModelXML is named by its direction, e.g. <input_port name="..."/>.
type portModelXML struct {
	XMLName     xml.Name
	Name        string `xml:"name,attr"`
	Default     string `xml:"default,attr,omitempty"`
	Description string `xml:",chardata"`
}

func writeNodesModel(w io.Writer, manifests []behavior.Manifest) error {
	doc := nodesModelXML{Format: "4"}
	for _, m := range manifests {
		node := nodeModelXML{XMLName: xml.Name{Local: m.Kind.String()}, ID: m.ID}
		for _, p := range m.Ports {
			node.Ports = append(node.Ports, portModelXML{
				XMLName:     xml.Name{Local: p.Direction.String()},
				Name:        p.Name,
				Default:     p.Default,
				Description: p.Description,
			})
		}
		doc.Model.Nodes = append(doc.Model.Nodes, node)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
