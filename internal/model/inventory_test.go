package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemKey_LockKey(t *testing.T) {
	variant := "b"
	tests := []struct {
		name string
		a, b ItemKey
	}{
		{"slash in product id", ItemKey{ProductID: "a/b"}, NewItemKey("a", &variant)},
		{"colon in product id", ItemKey{ProductID: "a:b"}, ItemKey{ProductID: "a", VariantID: "b"}},
		{"colon in variant id", ItemKey{ProductID: "a", VariantID: "1:x"}, ItemKey{ProductID: "a:1", VariantID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a.LockKey(), tt.b.LockKey())
		})
	}

	assert.Equal(t, ItemKey{ProductID: "p-1"}.LockKey(), NewItemKey("p-1", nil).LockKey())
	assert.Equal(t, "3:p-1:red", ItemKey{ProductID: "p-1", VariantID: "red"}.LockKey())
}
