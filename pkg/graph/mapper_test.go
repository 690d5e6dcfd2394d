package graph

import (
	"encoding/json"
	"testing"

	"github.com/osintbuddy/backend/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blueprintJSON = `{
	"label": "IP Address",
	"color": "#145070",
	"icon": "map-pin",
	"elements": [
		{"type": "text", "label": "IP Address", "value": "1.1.1.1", "icon": "map-pin", "placeholder": "Enter an IP"},
		{"type": "empty", "label": "spacer"},
		[
			{"type": "title", "label": "Geo Location", "title": "Sydney", "subtitle": "Australia", "style": {"bold": true}},
			{"type": "dropdown", "label": "Source", "value": "whois", "options": [{"label": "whois"}, {"label": "rdap"}]}
		],
		{"type": "number", "label": "ASN", "value": 13335},
		{"type": "text", "label": "Note", "value": "O'Brien"}
	]
}`

func loadBlueprint(t *testing.T) common.Blueprint {
	t.Helper()
	var bp common.Blueprint
	require.NoError(t, json.Unmarshal([]byte(blueprintJSON), &bp))
	return bp
}

func TestToProperties(t *testing.T) {
	bp := loadBlueprint(t)
	props, decorated := ToProperties(bp, common.Position{X: 100, Y: 120})

	assert.Equal(t, common.Properties{
		"x":                      float64(100),
		"y":                      float64(120),
		"ip_address":             "1.1.1.1",
		"geo_location__title":    "Sydney",
		"geo_location__subtitle": "Australia",
		"source":                 "whois",
		"asn":                    float64(13335),
		"note":                   "O'Brien",
	}, props)

	// decoration stays in the returned copy
	first := decorated.Elements[0].Element
	require.NotNil(t, first)
	assert.JSONEq(t, `"map-pin"`, string(first.Icon))
	assert.JSONEq(t, `[{"label":"whois"},{"label":"rdap"}]`, string(decorated.Elements[2].Group[1].Options))
}

func TestToPropertiesDoesNotMutateBlueprint(t *testing.T) {
	bp := loadBlueprint(t)
	before, err := json.Marshal(bp)
	require.NoError(t, err)

	_, decorated := ToProperties(bp, common.Position{})
	decorated.Elements[0].Element.Value = "changed"
	decorated.Elements[2].Group[0].Extra["title"] = "changed"

	after, err := json.Marshal(bp)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestEmptyElementNeverMapped(t *testing.T) {
	bp := common.Blueprint{
		Label: "Spacer",
		Elements: []common.ElementRow{
			common.Single(common.Element{Type: common.ElementEmpty, Label: "gap", Value: "ignored"}),
		},
	}
	props, _ := ToProperties(bp, common.Position{X: 1, Y: 2})
	assert.Equal(t, common.Properties{"x": float64(1), "y": float64(2)}, props)
}

func TestRoundTrip(t *testing.T) {
	bp := loadBlueprint(t)
	pos := common.Position{X: 42.5, Y: -7}
	props, _ := ToProperties(bp, pos)

	entity := FromVertex(common.Vertex{ID: 844424930131969, Label: "ip_address", Properties: props}, bp)

	assert.Equal(t, "844424930131969", entity.ID)
	assert.Equal(t, common.EntityView, entity.Type)
	require.NotNil(t, entity.Position)
	assert.Equal(t, pos, *entity.Position)

	want, err := json.Marshal(bp)
	require.NoError(t, err)
	got, err := json.Marshal(entity.Data)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestRoundTripWithStoredNumbers(t *testing.T) {
	bp := loadBlueprint(t)
	// values as they come back from the store
	props := common.Properties{
		"x":                      int64(150),
		"y":                      int64(150),
		"ip_address":             "1.1.1.1",
		"geo_location__title":    "Sydney",
		"geo_location__subtitle": "Australia",
		"source":                 "whois",
		"asn":                    int64(13335),
		"note":                   "O'Brien",
	}
	entity := FromVertex(common.Vertex{ID: 1, Properties: props}, bp)
	assert.Equal(t, common.Position{X: 150, Y: 150}, *entity.Position)
	assert.Equal(t, int64(13335), entity.Data.Elements[3].Element.Value)
	// input map untouched
	assert.Len(t, props, 8)
}

func TestFromVertexIdempotent(t *testing.T) {
	bp := loadBlueprint(t)
	props, _ := ToProperties(bp, common.Position{X: 3, Y: 4})
	props["geo_location__city_code"] = "SYD"
	v := common.Vertex{ID: 9, Label: "ip_address", Properties: props}

	a, err := json.Marshal(FromVertex(v, bp))
	require.NoError(t, err)
	b, err := json.Marshal(FromVertex(v, bp))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestFromVertexAbsentKeyLeavesValueUnset(t *testing.T) {
	bp := loadBlueprint(t)
	v := common.Vertex{ID: 5, Properties: common.Properties{"x": 1.0, "y": 2.0, "note": "only this"}}

	entity := FromVertex(v, bp)
	assert.Nil(t, entity.Data.Elements[0].Element.Value)
	assert.Nil(t, entity.Data.Elements[3].Element.Value)
	assert.Equal(t, "only this", entity.Data.Elements[4].Element.Value)
	// template sub-fields are kept as is
	assert.Equal(t, "Sydney", entity.Data.Elements[2].Group[0].Extra["title"])
}

func TestFromVertexRegroupsLeftoverSubKeys(t *testing.T) {
	bp := loadBlueprint(t)
	v := common.Vertex{ID: 5, Properties: common.Properties{
		"x":                       0.0,
		"y":                       0.0,
		"geo_location__title":     "Perth",
		"geo_location__city_code": "PER",
	}}

	entity := FromVertex(v, bp)
	geo := entity.Data.Elements[2].Group[0]
	assert.Nil(t, geo.Value)
	assert.Equal(t, "Perth", geo.Extra["title"])
	assert.Equal(t, "Australia", geo.Extra["subtitle"])
	assert.Equal(t, "PER", geo.Extra["city_code"])
}

func TestReservedLabelsDoNotClobberPosition(t *testing.T) {
	bp := common.Blueprint{
		Label: "Point",
		Elements: []common.ElementRow{
			common.Single(common.Element{Type: "number", Label: "X", Value: 9}),
		},
	}
	props, _ := ToProperties(bp, common.Position{X: 1, Y: 2})
	assert.Equal(t, float64(1), props["x"])
	assert.Equal(t, 9, props["el_x"])

	entity := FromVertex(common.Vertex{ID: 1, Properties: props}, bp)
	assert.Equal(t, common.Position{X: 1, Y: 2}, *entity.Position)
	assert.Equal(t, 9, entity.Data.Elements[0].Element.Value)
}

func TestEdgeView(t *testing.T) {
	view := EdgeView(common.Edge{ID: 11, Label: "transformed", StartID: 1, EndID: 2})
	assert.Equal(t, common.EdgeView{
		ID:           "11",
		Source:       "1",
		Target:       "2",
		SourceHandle: "r1",
		TargetHandle: "l2",
		Type:         "float",
	}, view)
}

func TestFallback(t *testing.T) {
	entity := Fallback(common.Vertex{ID: 3, Label: "legacy", Properties: common.Properties{
		"x": int64(10), "y": int64(20), "b": "two", "a": "one",
	}})
	assert.Equal(t, "legacy", entity.Data.Label)
	assert.Equal(t, common.Position{X: 10, Y: 20}, *entity.Position)
	require.Len(t, entity.Data.Elements, 2)
	assert.Equal(t, "a", entity.Data.Elements[0].Element.Label)
	assert.Equal(t, "b", entity.Data.Elements[1].Element.Label)
}

func TestCreated(t *testing.T) {
	entity := Created(7, common.Blueprint{Label: "Domain"}, common.Position{X: 150, Y: 150}, "3")
	assert.Equal(t, "7", entity.ID)
	assert.Equal(t, common.EntityEdit, entity.Type)
	assert.Equal(t, "createEntity", entity.Action)
	assert.Equal(t, "3", entity.ParentID)
}
