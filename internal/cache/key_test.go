package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/industryvis/historian/internal/models"
)

func TestNewKeyTagOrderIndependent(t *testing.T) {
	a := NewKey("T", "s", "e", []string{"x", "y", "z"}, nil)
	b := NewKey("T", "s", "e", []string{"z", "x", "y"}, nil)
	assert.Equal(t, a, b)
}

func TestNewKeyNilAndEmptyTagsEquivalent(t *testing.T) {
	a := NewKey("T", "s", "e", nil, nil)
	b := NewKey("T", "s", "e", []string{}, nil)
	assert.Equal(t, a, b)
}

func TestNewKeyDoesNotMutateInput(t *testing.T) {
	tags := []string{"z", "a"}
	NewKey("T", "s", "e", tags, nil)
	assert.Equal(t, []string{"z", "a"}, tags)
}

func TestNewKeyDistinguishesEveryDimension(t *testing.T) {
	cfg := models.DefaultProcessingConfig()
	base := NewKey("T", "s", "e", []string{"x"}, &cfg)

	variants := []Key{
		NewKey("T2", "s", "e", []string{"x"}, &cfg),
		NewKey("T", "s2", "e", []string{"x"}, &cfg),
		NewKey("T", "s", "e2", []string{"x"}, &cfg),
		NewKey("T", "s", "e", []string{"x", "y"}, &cfg),
		NewKey("T", "s", "e", []string{"x"}, nil),
	}
	for i, v := range variants {
		assert.NotEqual(t, base, v, "variant %d", i)
	}
}

func TestProcessingHashSensitiveToEachField(t *testing.T) {
	base := models.DefaultProcessingConfig()

	mutations := []models.ProcessingConfig{
		base.WithOutlierRemoval("3sigma"),
		base.WithResample(60, "mean"),
		base.WithResample(120, "mean"),
		base.WithSmoothing(5, "moving_avg"),
		base.WithSmoothing(7, "moving_avg"),
	}

	seen := map[uint64]int{hashProcessingConfig(&base): -1}
	for i := range mutations {
		h := hashProcessingConfig(&mutations[i])
		prev, dup := seen[h]
		assert.False(t, dup, "mutation %d collides with %d", i, prev)
		seen[h] = i
	}
}

func TestProcessingHashNilIsZero(t *testing.T) {
	assert.Equal(t, uint64(0), hashProcessingConfig(nil))

	cfg := models.DefaultProcessingConfig()
	assert.NotEqual(t, uint64(0), hashProcessingConfig(&cfg))
}

func TestProcessingHashDeterministic(t *testing.T) {
	cfg := models.DefaultProcessingConfig().WithResample(60, "mean")
	assert.Equal(t, hashProcessingConfig(&cfg), hashProcessingConfig(&cfg))
}

func TestKeyTagList(t *testing.T) {
	k := NewKey("T", "s", "e", []string{"b", "a"}, nil)
	assert.Equal(t, []string{"a", "b"}, k.TagList())

	empty := NewKey("T", "s", "e", nil, nil)
	assert.Nil(t, empty.TagList())
}
