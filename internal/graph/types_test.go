package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	live := map[ID]bool{7: true}
	exists := func(id ID) bool { return live[id] }

	assert.Equal(t, Unset, Resolve(0, exists))
	assert.Equal(t, Valid, Resolve(7, exists))
	assert.Equal(t, Dangling, Resolve(8, exists))
}

func TestFieldReportable(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  bool
	}{
		{"dangling reference", Field{Kind: KindObjectReference, State: Dangling}, true},
		{"unset reference", Field{Kind: KindObjectReference, State: Unset}, false},
		{"valid reference", Field{Kind: KindObjectReference, State: Valid}, false},
		{"dangling value field", Field{Kind: KindValue, State: Dangling}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field.Reportable())
		})
	}
}

func TestNodeString(t *testing.T) {
	assert.Equal(t, "Level/Player", Node{Name: "Player", Path: "Level/Player"}.String())
	assert.Equal(t, "Player", Node{Name: "Player"}.String())
}
