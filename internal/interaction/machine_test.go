package interaction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard/internal/canvas"
	"whiteboard/internal/domain"
	"whiteboard/internal/interaction"
	"whiteboard/internal/template"
)

func newMachine() *interaction.Machine {
	return interaction.NewMachine(template.Builtin(), canvas.NewCounter("node", 100), nil)
}

func TestMachine_StartsIdleWithDefaultAnchor(t *testing.T) {
	m := newMachine()
	assert.Equal(t, interaction.Idle, m.Mode().State)
	assert.Equal(t, domain.Point{X: 100, Y: 100}, m.Anchor())
	assert.Empty(t, m.Click(domain.Point{X: 5, Y: 5}))
	assert.Equal(t, domain.Point{X: 5, Y: 5}, m.Anchor())
}

func TestMachine_ShapeIsSingleShot(t *testing.T) {
	m := newMachine()
	_, err := m.SelectShape(domain.ShapeDiamond, "")
	require.NoError(t, err)
	assert.Equal(t, interaction.ShapeArmed, m.Mode().State)

	click := domain.Point{X: 321, Y: 654}
	els := m.Click(click)
	require.Len(t, els, 1)
	assert.Equal(t, domain.ElementKindShape, els[0].Kind)
	assert.Equal(t, domain.ShapeDiamond, els[0].Data.ShapeType)
	assert.Equal(t, "#ec4899", els[0].Data.Color)
	assert.Equal(t, click, els[0].Position)
	assert.Equal(t, interaction.Idle, m.Mode().State)

	assert.Empty(t, m.Click(click))
}

func TestMachine_StickyToolStaysArmed(t *testing.T) {
	m := newMachine()
	_, err := m.SelectTool(interaction.ToolSticky)
	require.NoError(t, err)

	first := m.Click(domain.Point{X: 10, Y: 10})
	second := m.Click(domain.Point{X: 400, Y: 10})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, domain.ElementKindSticky, first[0].Kind)
	assert.Equal(t, domain.DefaultStickyColor, first[0].Data.Color)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	mode := m.Mode()
	assert.Equal(t, interaction.ToolArmed, mode.State)
	assert.Equal(t, interaction.ToolSticky, mode.Tool)
}

func TestMachine_TextToolPlacesEmptyText(t *testing.T) {
	m := newMachine()
	_, err := m.SelectTool(interaction.ToolText)
	require.NoError(t, err)
	els := m.Click(domain.Point{X: 1, Y: 2})
	require.Len(t, els, 1)
	assert.Equal(t, domain.ElementKindText, els[0].Kind)
	assert.Equal(t, domain.Size{Width: 200, Height: 100}, els[0].Size)
	assert.Empty(t, els[0].Data.Text)
}

func TestMachine_TemplateIsSingleShot(t *testing.T) {
	m := newMachine()
	_, err := m.SelectTemplate("kanban")
	require.NoError(t, err)

	els := m.Click(domain.Point{X: 1000, Y: 1000})
	require.Len(t, els, 4)
	assert.Equal(t, domain.Point{X: 1050, Y: 1050}, els[0].Position)
	assert.Equal(t, interaction.Idle, m.Mode().State)
}

func TestMachine_ArmedStatesAreExclusive(t *testing.T) {
	m := newMachine()
	_, _ = m.SelectShape(domain.ShapeStar, "")
	_, _ = m.SelectTemplate("timeline")
	mode := m.Mode()
	assert.Equal(t, interaction.TemplateArmed, mode.State)
	assert.Empty(t, mode.Shape)

	_, _ = m.SelectTool(interaction.ToolText)
	mode = m.Mode()
	assert.Equal(t, interaction.ToolArmed, mode.State)
	assert.Empty(t, mode.TemplateID)
}

func TestMachine_ReselectToggles(t *testing.T) {
	tests := []struct {
		name string
		arm  func(m *interaction.Machine) (interaction.Mode, error)
	}{
		{"shape", func(m *interaction.Machine) (interaction.Mode, error) { return m.SelectShape(domain.ShapeCircle, "") }},
		{"template", func(m *interaction.Machine) (interaction.Mode, error) { return m.SelectTemplate("feedback") }},
		{"tool", func(m *interaction.Machine) (interaction.Mode, error) { return m.SelectTool(interaction.ToolSticky) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine()
			mode, err := tt.arm(m)
			require.NoError(t, err)
			assert.NotEqual(t, interaction.Idle, mode.State)

			mode, err = tt.arm(m)
			require.NoError(t, err)
			assert.Equal(t, interaction.Idle, mode.State)
		})
	}
}

func TestMachine_SwitchingShapeKeepsArmed(t *testing.T) {
	m := newMachine()
	_, _ = m.SelectShape(domain.ShapeCircle, "")
	mode, err := m.SelectShape(domain.ShapeHexagon, "#000000")
	require.NoError(t, err)
	assert.Equal(t, interaction.ShapeArmed, mode.State)
	assert.Equal(t, domain.ShapeHexagon, mode.Shape)
	assert.Equal(t, "#000000", mode.Color)
}

func TestMachine_CancelFromAnyState(t *testing.T) {
	m := newMachine()
	for _, arm := range []func(){
		func() { _, _ = m.SelectShape(domain.ShapeLine, "") },
		func() { _, _ = m.SelectTemplate("kanban") },
		func() { _, _ = m.SelectTool(interaction.ToolText) },
		func() {},
	} {
		arm()
		assert.Equal(t, interaction.Idle, m.Cancel().State)
	}
}

func TestMachine_RejectsUnknownSelections(t *testing.T) {
	m := newMachine()
	_, err := m.SelectShape("blob", "")
	assert.ErrorIs(t, err, interaction.ErrUnknownShape)
	_, err = m.SelectTemplate("nope")
	assert.ErrorIs(t, err, interaction.ErrUnknownTemplate)
	_, err = m.SelectTool("pen")
	assert.ErrorIs(t, err, interaction.ErrUnknownTool)
	assert.Equal(t, interaction.Idle, m.Mode().State)
}

func TestMachine_RestoreOnlyFromIdle(t *testing.T) {
	m := newMachine()
	armed, err := m.SelectTemplate("kanban")
	require.NoError(t, err)
	m.Click(domain.Point{X: 1, Y: 1})
	require.Equal(t, interaction.Idle, m.Mode().State)

	assert.True(t, m.Restore(armed))
	assert.Equal(t, armed, m.Mode())

	_, err = m.SelectTool(interaction.ToolText)
	require.NoError(t, err)
	assert.False(t, m.Restore(armed))
	assert.Equal(t, interaction.ToolArmed, m.Mode().State)
}

func TestMachine_DropKeepsArmedState(t *testing.T) {
	m := newMachine()
	_, _ = m.SelectTool(interaction.ToolSticky)

	el, err := m.Drop(domain.ShapeTriangle, "", domain.Point{X: 77, Y: 88})
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: 77, Y: 88}, el.Position)
	assert.Equal(t, "#10b981", el.Data.Color)
	assert.Equal(t, interaction.ToolArmed, m.Mode().State)
	// A drop is not a click and does not move the AI anchor.
	assert.Equal(t, interaction.DefaultAnchor, m.Anchor())
}
