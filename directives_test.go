package weave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

func TestEvaluateSkipAndIncludeDropsSkippedField(t *testing.T) {
	schema := mustSchema(t, `type Query { a: String, b: String }`)
	doc := gqlparser.MustLoadQuery(schema, `query($skipA: Boolean!) {
		a @skip(if: $skipA)
		b
	}`)

	rewritten := evaluateSkipAndInclude(map[string]interface{}{"skipA": true}, doc.Operations[0])

	var names []string
	for _, s := range rewritten.SelectionSet {
		names = append(names, s.(*ast.Field).Name)
	}
	assert.Equal(t, []string{"b"}, names)
}

func TestEvaluateSkipAndIncludeKeepsFieldWhenIncludeTrue(t *testing.T) {
	schema := mustSchema(t, `type Query { a: String }`)
	doc := gqlparser.MustLoadQuery(schema, `query($show: Boolean!) { a @include(if: $show) }`)

	rewritten := evaluateSkipAndInclude(map[string]interface{}{"show": true}, doc.Operations[0])

	require.Len(t, rewritten.SelectionSet, 1)
	field := rewritten.SelectionSet[0].(*ast.Field)
	assert.Equal(t, "a", field.Name)
	assert.Empty(t, field.Directives.ForName("include"))
}

func TestResolveIfArgumentRejectsNonBoolean(t *testing.T) {
	d := &ast.Directive{
		Name: "skip",
		Arguments: ast.ArgumentList{{
			Name:  "if",
			Value: &ast.Value{Kind: ast.StringValue, Raw: "nope"},
		}},
	}
	_, err := resolveIfArgument(d, nil)
	assert.Error(t, err)
}
