package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpression_UnitName(t *testing.T) {
	expr, err := NewExpression(ExprUnitName, "syncthing.service")
	require.NoError(t, err)

	assert.True(t, expr.Matches("syncthing.service"))
	assert.False(t, expr.Matches("syncthing.timer"))
	assert.False(t, expr.Matches("mysyncthing.service"))
	assert.False(t, expr.Matches(""))
}

func TestExpression_UnitType(t *testing.T) {
	expr, err := NewExpression(ExprUnitType, ".timer")
	require.NoError(t, err)

	assert.True(t, expr.Matches("backup.timer"))
	assert.True(t, expr.Matches("fstrim.timer"))
	assert.False(t, expr.Matches("backup.service"))
	// Suffix matching, not containment.
	assert.False(t, expr.Matches("backup.timer.service"))
}

func TestExpression_Regex(t *testing.T) {
	expr, err := NewExpression(ExprRegex, `^docker-[0-9a-f]+\.scope$`)
	require.NoError(t, err)

	assert.True(t, expr.Matches("docker-abc123.scope"))
	assert.False(t, expr.Matches("docker-.scope"))
	assert.False(t, expr.Matches("podman-abc123.scope"))
}

func TestExpression_RegexUnanchored(t *testing.T) {
	// Patterns are not implicitly anchored.
	expr, err := NewExpression(ExprRegex, `\.service`)
	require.NoError(t, err)

	assert.True(t, expr.Matches("a.service"))
	assert.True(t, expr.Matches("a.service.wants"))
}

func TestExpression_ZeroValue(t *testing.T) {
	var expr Expression
	assert.False(t, expr.Matches("anything.service"))
}

func TestExpression_Determinism(t *testing.T) {
	expr, err := NewExpression(ExprRegex, `^n.*\.service$`)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, expr.Matches("nginx.service"))
		assert.False(t, expr.Matches("httpd.service"))
	}
}

func TestExpression_String(t *testing.T) {
	expr, err := NewExpression(ExprUnitName, "a.service")
	require.NoError(t, err)
	assert.Equal(t, "unit name:a.service", expr.String())
	assert.Equal(t, ExprUnitName, expr.Kind())
	assert.Equal(t, "a.service", expr.Pattern())
}
