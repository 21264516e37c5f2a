package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

func TestLookup(t *testing.T) {
	for _, code := range []string{"en", "EN", "zh-tw", "zh_TW", " zh-tw "} {
		_, ok := Lookup(code)
		assert.True(t, ok, code)
	}
	_, ok := Lookup("fr")
	assert.False(t, ok)
	assert.Equal(t, []string{"en", "zh-tw"}, Codes())
	assert.Panics(t, func() { MustLookup("xx") })
}

func TestParseSubject(t *testing.T) {
	en := MustLookup("en")
	zh := MustLookup("zh-tw")

	tests := []struct {
		name  string
		table *Table
		text  string
		want  ir.Subject
	}{
		{"plain title", en, "berlin city", ir.NewSubject("Berlin_city", ir.NSMain)},
		{"concept prefix", en, "Concept:Big cities", ir.NewSubject("Big_cities", ir.NSConcept)},
		{"lowercase prefix", en, "property:Has age", ir.NewSubject("Has_age", ir.NSProperty)},
		{"core namespace", en, "Category:Cities", ir.NewSubject("Cities", ir.NSCategory)},
		{"unknown prefix stays in title", en, "Foo:Bar", ir.NewSubject("Foo:Bar", ir.NSMain)},
		{"subobject", en, "Berlin#district 1", ir.NewSubject("Berlin", ir.NSMain).WithSubobject("district 1")},
		{"localized prefix", zh, "概念:城市", ir.NewSubject("城市", ir.NSConcept)},
		{"english alias in zh-tw", zh, "Property:Age", ir.NewSubject("Age", ir.NSProperty)},
		{"property talk", en, "Property talk:Age", ir.NewSubject("Age", ir.NSPropertyTalk)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.table.ParseSubject(tt.text, ir.NSMain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSubject_DefaultNamespace(t *testing.T) {
	got, err := MustLookup("en").ParseSubject("Big cities", ir.NSConcept)
	require.NoError(t, err)
	assert.Equal(t, ir.NewSubject("Big_cities", ir.NSConcept), got)
}

func TestParseSubject_Invalid(t *testing.T) {
	for _, text := range []string{"", "   ", "Concept:", "#only"} {
		_, err := MustLookup("en").ParseSubject(text, ir.NSMain)
		require.Error(t, err, text)
		assert.True(t, errors.Is(err, errors.ErrInvalidSubject))
	}
}

func TestPrefixedText(t *testing.T) {
	en := MustLookup("en")
	zh := MustLookup("zh-tw")
	assert.Equal(t, "Concept:Big cities", en.PrefixedText(ir.NewSubject("Big cities", ir.NSConcept)))
	assert.Equal(t, "Berlin", en.PrefixedText(ir.NewSubject("Berlin", ir.NSMain)))
	assert.Equal(t, "Property talk:Age", en.PrefixedText(ir.NewSubject("Age", ir.NSPropertyTalk)))
	assert.Equal(t, "概念:城市", zh.PrefixedText(ir.NewSubject("城市", ir.NSConcept)))
	assert.Equal(t, "Berlin#geo", en.PrefixedText(ir.NewSubject("Berlin", ir.NSMain).WithSubobject("geo")))
}

func TestProperty(t *testing.T) {
	en := MustLookup("en")
	zh := MustLookup("zh-tw")

	assert.Equal(t, ir.NewProperty(ir.PropType), en.Property("Has type"))
	assert.Equal(t, ir.NewProperty(ir.PropType), en.Property("has_type"))
	assert.Equal(t, ir.NewProperty(ir.PropDisplayUnit), en.Property("Display unit"))
	assert.Equal(t, ir.NewProperty(ir.PropType), zh.Property("設有型態"))
	assert.Equal(t, ir.NewProperty(ir.PropType), zh.Property("Has type"), "english alias")
	assert.Equal(t, ir.NewProperty(ir.PropRedirect), en.Property("_REDI"))
	assert.Equal(t, ir.NewProperty("Population"), en.Property("population"))
}

func TestPropertyLabel(t *testing.T) {
	en := MustLookup("en")
	zh := MustLookup("zh-tw")
	assert.Equal(t, "Has type", en.PropertyLabel(ir.NewProperty(ir.PropType)))
	assert.Equal(t, "設有型態", zh.PropertyLabel(ir.NewProperty(ir.PropType)))
	assert.Equal(t, "Concept description", zh.PropertyLabel(ir.NewProperty(ir.PropConcept)), "falls back to english")
	assert.Equal(t, "Located in", en.PropertyLabel(ir.NewProperty("Located in")))
	assert.Equal(t, "_XYZ", en.PropertyLabel(ir.NewProperty("_XYZ")))
}

func TestDatatype(t *testing.T) {
	zh := MustLookup("zh-tw")
	for label, want := range map[string]string{
		"數字":     "_num",
		"整數":     "_num",
		"Number": "_num",
		"page":   "_wpg",
	} {
		got, ok := zh.Datatype(label)
		assert.True(t, ok, label)
		assert.Equal(t, want, got, label)
	}

	got, ok := MustLookup("en").Datatype("Integer")
	assert.True(t, ok)
	assert.Equal(t, "_num", got)

	_, ok = zh.Datatype("Unknown")
	assert.False(t, ok)
	assert.Equal(t, "數字", zh.DatatypeLabel("_num"))
	assert.Equal(t, "Number", MustLookup("en").DatatypeLabel("_num"))
}
