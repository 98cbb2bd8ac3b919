package display

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vincev/dply/plan"
)

func testSchema() plan.Schema {
	return plan.Schema{{Name: "id", Type: plan.Int64}, {Name: "name", Type: plan.Utf8}}
}

func testRows() []plan.Row {
	return []plan.Row{
		{plan.IntVal(1), plan.StrVal("alice")},
		{plan.IntVal(2), plan.StrVal("bob")},
	}
}

func TestShowContainsHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	Show(&buf, DefaultConfig(), testSchema(), testRows())
	out := buf.String()
	for _, want := range []string{"id", "name", "alice", "bob"} {
		assert.Containsf(t, out, want, "Show output missing %q", want)
	}
}

func TestHeadLimitsRows(t *testing.T) {
	var buf bytes.Buffer
	Head(&buf, DefaultConfig(), testSchema(), testRows(), 1)
	out := buf.String()
	assert.Contains(t, out, "alice", "Head(1) output missing the first row")
	assert.NotContains(t, out, "bob", "Head(1) output should not contain the second row")
}

func TestGlimpseListsEveryColumn(t *testing.T) {
	var buf bytes.Buffer
	Glimpse(&buf, testSchema(), testRows())
	out := buf.String()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "name")
}
