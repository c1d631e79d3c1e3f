// Package script parses BubbleFlow source into a structural model: the flow
// class, its entry method and every bubble instantiation with a stable
// variable id. The scan is a static AST walk over goja's parse tree, not a
// type check and not string matching, so id assignment is deterministic and
// repeated parses of the same source agree.
package script

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

const (
	// ScriptFilename is the name the source is compiled under; runtime stack
	// positions carry it, which is how instantiations are correlated back to
	// parsed variable ids.
	ScriptFilename = "bubbleflow.js"

	BaseClassName   = "BubbleFlow"
	EntryMethodName = "handle"
)

// ExprRef marks a constructor argument whose value is not a literal; it
// holds the raw source text of the expression for display purposes only.
type ExprRef string

// ParsedBubbleInstantiation is one `new XyzBubble(...)` occurrence. Created
// once per parse and never mutated afterwards.
type ParsedBubbleInstantiation struct {
	VariableID int
	BubbleName domain.BubbleName
	ClassName  string

	// Args is the literal structure of the first constructor argument.
	// Dynamic sub-expressions appear as ExprRef values.
	Args map[string]any

	Line   int
	Column int
}

type ScriptModel struct {
	Source         string
	ClassName      string
	Instantiations []ParsedBubbleInstantiation
}

// InstantiationAt returns the instantiation of the given class at the given
// source line, used by the runtime to correlate live constructor calls.
func (m *ScriptModel) InstantiationAt(className string, line int) (ParsedBubbleInstantiation, bool) {
	for _, inst := range m.Instantiations {
		if inst.ClassName == className && inst.Line == line {
			return inst, true
		}
	}

	return ParsedBubbleInstantiation{}, false
}

// InstantiationsAt returns every instantiation of the given class on one
// source line, in column order. Several instantiations may share a line.
func (m *ScriptModel) InstantiationsAt(className string, line int) []ParsedBubbleInstantiation {
	matches := []ParsedBubbleInstantiation{}

	for _, inst := range m.Instantiations {
		if inst.ClassName == className && inst.Line == line {
			matches = append(matches, inst)
		}
	}

	return matches
}

// InstantiationsOf returns the instantiations of one class in source order.
func (m *ScriptModel) InstantiationsOf(className string) []ParsedBubbleInstantiation {
	matches := []ParsedBubbleInstantiation{}

	for _, inst := range m.Instantiations {
		if inst.ClassName == className {
			matches = append(matches, inst)
		}
	}

	return matches
}

// Parse builds the script model for one BubbleFlow source. Instantiations of
// classes unknown to the registry are ignored (they may be plain helpers);
// a missing flow class or entry method is a hard parse error.
func Parse(source string, registry domain.BubbleRegistry) (*ScriptModel, error) {
	program, err := parser.ParseFile(nil, ScriptFilename, source, 0)
	if err != nil {
		return nil, &domain.ParseError{Message: err.Error()}
	}

	collector := &nodeCollector{seen: map[any]struct{}{}}
	collector.walk(reflect.ValueOf(program))

	flowClass := findFlowClass(collector.classes)
	if flowClass == nil {
		return nil, &domain.ParseError{
			Message: fmt.Sprintf("no class extending %s found", BaseClassName),
		}
	}

	if !hasEntryMethod(flowClass) {
		return nil, &domain.ParseError{
			Message: fmt.Sprintf("class %s has no %s method", className(flowClass), EntryMethodName),
		}
	}

	model := &ScriptModel{
		Source:    source,
		ClassName: className(flowClass),
	}

	type located struct {
		inst   ParsedBubbleInstantiation
		offset int
	}

	locatedInsts := []located{}

	for _, newExpr := range collector.newExprs {
		callee, ok := newExpr.Callee.(*ast.Identifier)
		if !ok {
			continue
		}

		def, ok := registry.GetByClassName(callee.Name.String())
		if !ok {
			continue
		}

		offset := int(newExpr.Idx0()) - 1
		line, column := positionAt(source, offset)

		locatedInsts = append(locatedInsts, located{
			inst: ParsedBubbleInstantiation{
				BubbleName: def.Name,
				ClassName:  def.ClassName,
				Args:       constructorArgs(source, newExpr),
				Line:       line,
				Column:     column,
			},
			offset: offset,
		})
	}

	// Variable ids follow source order so that discovery and injection
	// passes over the same source always agree.
	sort.Slice(locatedInsts, func(i, j int) bool {
		return locatedInsts[i].offset < locatedInsts[j].offset
	})

	for i, entry := range locatedInsts {
		entry.inst.VariableID = i + 1
		model.Instantiations = append(model.Instantiations, entry.inst)
	}

	return model, nil
}

type nodeCollector struct {
	seen     map[any]struct{}
	newExprs []*ast.NewExpression
	classes  []*ast.ClassLiteral
}

// walk traverses the AST generically via reflection. goja duplicates some
// declaration nodes across scope lists, so nodes are visited at most once.
func (c *nodeCollector) walk(v reflect.Value) {
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return
		}

		iface := v.Interface()
		if _, dup := c.seen[iface]; dup {
			return
		}
		c.seen[iface] = struct{}{}

		switch node := iface.(type) {
		case *ast.NewExpression:
			c.newExprs = append(c.newExprs, node)
		case *ast.ClassLiteral:
			c.classes = append(c.classes, node)
		}

		c.walk(v.Elem())

	case reflect.Interface:
		if v.IsNil() {
			return
		}

		c.walk(v.Elem())

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if !field.CanInterface() {
				continue
			}

			c.walk(field)
		}

	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			c.walk(v.Index(i))
		}
	}
}

func findFlowClass(classes []*ast.ClassLiteral) *ast.ClassLiteral {
	for _, class := range classes {
		super, ok := class.SuperClass.(*ast.Identifier)
		if !ok {
			continue
		}

		if super.Name.String() == BaseClassName {
			return class
		}
	}

	return nil
}

func className(class *ast.ClassLiteral) string {
	if class.Name == nil {
		return ""
	}

	return class.Name.Name.String()
}

func hasEntryMethod(class *ast.ClassLiteral) bool {
	for _, element := range class.Body {
		method, ok := element.(*ast.MethodDefinition)
		if !ok {
			continue
		}

		if method.Body == nil {
			continue
		}

		switch key := method.Key.(type) {
		case *ast.Identifier:
			if key.Name.String() == EntryMethodName {
				return true
			}
		case *ast.StringLiteral:
			if key.Value.String() == EntryMethodName {
				return true
			}
		}
	}

	return false
}

// constructorArgs extracts the literal structure of the first constructor
// argument when it is an object literal.
func constructorArgs(source string, newExpr *ast.NewExpression) map[string]any {
	if len(newExpr.ArgumentList) == 0 {
		return map[string]any{}
	}

	object, ok := newExpr.ArgumentList[0].(*ast.ObjectLiteral)
	if !ok {
		return map[string]any{}
	}

	return objectLiteralValue(source, object)
}

func objectLiteralValue(source string, object *ast.ObjectLiteral) map[string]any {
	values := map[string]any{}

	for _, property := range object.Value {
		switch p := property.(type) {
		case *ast.PropertyKeyed:
			key, ok := propertyKey(p.Key)
			if !ok {
				continue
			}

			values[key] = literalValue(source, p.Value)
		case *ast.PropertyShort:
			values[p.Name.Name.String()] = ExprRef(p.Name.Name.String())
		}
	}

	return values
}

func propertyKey(key ast.Expression) (string, bool) {
	switch k := key.(type) {
	case *ast.Identifier:
		return k.Name.String(), true
	case *ast.StringLiteral:
		return k.Value.String(), true
	case *ast.NumberLiteral:
		return fmt.Sprintf("%v", k.Value), true
	}

	return "", false
}

func literalValue(source string, expr ast.Expression) any {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		return e.Value.String()
	case *ast.NumberLiteral:
		return e.Value
	case *ast.BooleanLiteral:
		return e.Value
	case *ast.NullLiteral:
		return nil
	case *ast.ArrayLiteral:
		items := make([]any, 0, len(e.Value))
		for _, item := range e.Value {
			items = append(items, literalValue(source, item))
		}

		return items
	case *ast.ObjectLiteral:
		return objectLiteralValue(source, e)
	default:
		return ExprRef(sourceText(source, expr))
	}
}

func sourceText(source string, expr ast.Expression) string {
	start := int(expr.Idx0()) - 1
	end := int(expr.Idx1()) - 1

	if start < 0 || end > len(source) || start >= end {
		return ""
	}

	return strings.TrimSpace(source[start:end])
}

// positionAt converts a byte offset into 1-based line and column numbers.
func positionAt(source string, offset int) (int, int) {
	if offset < 0 {
		return 0, 0
	}

	if offset > len(source) {
		offset = len(source)
	}

	line := 1
	lastNewline := -1

	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			line++
			lastNewline = i
		}
	}

	return line, offset - lastNewline
}
