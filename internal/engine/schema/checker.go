package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"ontolint/internal/bundle"
	"ontolint/internal/core/errors"
	"ontolint/internal/core/ports"
)

// Document is the parsed structural schema: one OpenAPI-style schema per
// module name.
type Document struct {
	schemas map[string]*openapi3.Schema
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeSchemaUnavailable, "read schema document"),
			errors.CtxPath, path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return doc, nil
}

func Parse(data []byte) (*Document, error) {
	schemas := make(map[string]*openapi3.Schema)
	if err := json.Unmarshal(data, &schemas); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaUnavailable, "parse schema document")
	}
	return &Document{schemas: schemas}, nil
}

// ModuleNames lists the modules the document declares schemas for.
func (d *Document) ModuleNames() []string {
	names := make([]string, 0, len(d.schemas))
	for name := range d.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Checker validates each module's content tree against its declared schema.
// Modules are checked independently; cross-module relations belong to the
// semantic checkers.
type Checker struct {
	doc             *Document
	interopSeverity ports.Severity
	interopFields   map[string]bool
}

func NewChecker(doc *Document, interopSeverity ports.Severity, interopFields []string) *Checker {
	fields := make(map[string]bool, len(interopFields))
	for _, f := range interopFields {
		fields[f] = true
	}
	return &Checker{doc: doc, interopSeverity: interopSeverity, interopFields: fields}
}

func (c *Checker) Check(b *bundle.Bundle) []ports.Finding {
	var findings []ports.Finding

	for _, name := range b.Names() {
		mod, _ := b.Module(name)

		moduleSchema, ok := c.doc.schemas[name]
		if !ok {
			findings = append(findings, ports.Finding{
				Severity: ports.SeverityWarning,
				Checker:  ports.CheckerSchema,
				Location: ports.Location{Module: name},
				Message:  "no schema entry for module, structural validation skipped",
			})
			continue
		}

		err := moduleSchema.VisitJSON(mod.Content, openapi3.MultiErrors())
		if err == nil {
			continue
		}

		moduleFindings := c.convert(name, err)
		// kin-openapi walks object properties in map order; sort so the
		// report is byte-identical across runs.
		sort.Slice(moduleFindings, func(i, j int) bool {
			if moduleFindings[i].Location.FieldPath != moduleFindings[j].Location.FieldPath {
				return moduleFindings[i].Location.FieldPath < moduleFindings[j].Location.FieldPath
			}
			return moduleFindings[i].Message < moduleFindings[j].Message
		})
		findings = append(findings, moduleFindings...)
	}

	return findings
}

func (c *Checker) convert(module string, err error) []ports.Finding {
	multi, ok := err.(openapi3.MultiError)
	if !ok {
		multi = openapi3.MultiError{err}
	}

	var out []ports.Finding

	for _, item := range multi {
		se, ok := item.(*openapi3.SchemaError)
		if !ok {
			out = append(out, ports.Finding{
				Severity: ports.SeverityError,
				Checker:  ports.CheckerSchema,
				Location: ports.Location{Module: module},
				Message:  item.Error(),
			})
			continue
		}

		path := strings.Join(se.JSONPointer(), ".")
		severity := ports.SeverityError
		if c.isInteropPath(path) {
			severity = c.interopSeverity
		}

		reason := se.Reason
		if reason == "" {
			reason = se.Error()
		}
		if se.SchemaField != "" {
			reason = fmt.Sprintf("%s (%s)", reason, se.SchemaField)
		}

		out = append(out, ports.Finding{
			Severity: severity,
			Checker:  ports.CheckerSchema,
			Location: ports.Location{Module: module, FieldPath: path},
			Message:  reason,
		})
	}
	return out
}

func (c *Checker) isInteropPath(path string) bool {
	if path == "" {
		return false
	}
	segments := strings.Split(path, ".")
	return c.interopFields[segments[len(segments)-1]]
}
