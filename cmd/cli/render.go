package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/renderer"
	"github.com/thevladbog/idento-sub000/internal/template"
	"github.com/thevladbog/idento-sub000/internal/zpl"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

type dataFlags struct {
	file string
	sets []string
}

func (d *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.file, "data", "d", "", "YAML or JSON file with field values (- for stdin)")
	cmd.Flags().StringArrayVar(&d.sets, "set", nil, "field value as key=value (repeatable)")
}

func (d *dataFlags) load() (map[string]any, error) {
	return loadData(d.file, d.sets)
}

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Work with attendee display templates",
	}

	var (
		file   string
		styled bool
		width  int
		data   dataFlags
	)
	render := &cobra.Command{
		Use:   "render",
		Short: "Render an attendee template with field values",
		Example: `  idento template render -t card.md --set first_name=Jane --set company=Acme
  idento template render -t card.md -d attendee.json --styled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(file)
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			fields, err := data.load()
			if err != nil {
				return err
			}

			var out string
			if styled {
				out = template.RenderStyled(string(raw), fields, template.DefaultStyles(), width)
			} else {
				out = template.Render(string(raw), fields)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	render.Flags().StringVarP(&file, "template", "t", "", "template file (- for stdin)")
	render.Flags().BoolVar(&styled, "styled", false, "render headings with terminal styles")
	render.Flags().IntVar(&width, "width", 60, "wrap width for styled output")
	data.register(render)
	_ = render.MarkFlagRequired("template")

	cmd.AddCommand(render)
	return cmd
}

// labelFlags load a badge label and its field values
type labelFlags struct {
	label string
	data  dataFlags
}

func (l *labelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&l.label, "label", "l", "", "badge label JSON file")
	l.data.register(cmd)
}

func (l *labelFlags) load() (*badgeformat.LabelSpec, map[string]any, error) {
	raw, err := readInput(l.label)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read label: %w", err)
	}
	spec, err := badgeformat.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := badgeformat.Validate(spec); err != nil {
		return nil, nil, err
	}
	fields, err := l.data.load()
	if err != nil {
		return nil, nil, err
	}
	return spec, fields, nil
}

func newZPLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zpl",
		Short: "Generate printer commands from badge labels",
	}

	var (
		label  labelFlags
		output string
	)
	generate := &cobra.Command{
		Use:     "generate",
		Short:   "Generate ZPL for a badge label",
		Example: `  idento zpl generate -l badge.json --set first_name=Jane -o badge.zpl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, fields, err := label.load()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, []byte(zpl.GenerateLabel(spec, fields)))
		},
	}
	label.register(generate)
	generate.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = generate.MarkFlagRequired("label")

	cmd.AddCommand(generate)
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var (
		label  labelFlags
		output string
	)
	cmd := &cobra.Command{
		Use:     "preview",
		Short:   "Render a badge label to PNG",
		Example: `  idento preview -l badge.json -d attendee.yaml -o badge.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, fields, err := label.load()
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := renderer.RenderPNG(spec, fields, &buf); err != nil {
				return fmt.Errorf("failed to render preview: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), output, buf.Bytes())
		},
	}
	label.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file (default stdout)")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}
