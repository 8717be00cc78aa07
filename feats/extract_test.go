package feats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEmailBasics(t *testing.T) {
	p := NewPipeline()
	vec, err := p.ExtractFeatures(EntityEmail, map[string]any{"email": "john.doe99@gmail.com"})
	require.NoError(t, err)
	assert.Equal(t, "john.doe99@gmail.com", vec.EntityID)
	assert.Equal(t, 10.0, vec.Values["localLength"])
	assert.Equal(t, 1.0, vec.Values["isFreeProvider"])
	assert.Equal(t, 0.0, vec.Values["isDisposable"])
	assert.InDelta(t, 0.2, vec.Values["digitRatio"], 1e-9)
}

func TestExtractEmailDisposable(t *testing.T) {
	p := NewPipeline()
	vec, err := p.ExtractFeatures(EntityEmail, map[string]any{"email": "xyz@mailinator.com"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, vec.Values["isDisposable"])
}

func TestExtractEmailRoleAccount(t *testing.T) {
	p := NewPipeline()
	vec, err := p.ExtractFeatures(EntityEmail, map[string]any{"email": "admin@corp.io"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, vec.Values["isRoleAccount"])
}

func TestExtractEmailMalformed(t *testing.T) {
	p := NewPipeline()
	vec, err := p.ExtractFeatures(EntityEmail, map[string]any{"email": "not-an-address"})
	require.NoError(t, err)
	_, ok := vec.Get("localLength")
	assert.False(t, ok)
}

func TestExtractCompanySizeLabel(t *testing.T) {
	p := NewPipeline()
	vec, err := p.ExtractFeatures(EntityCompany, map[string]any{
		"id":          "c1",
		"companySize": "large",
		"industry":    "software",
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, vec.Values["companySize"])
	assert.Equal(t, 1.0, vec.Values["industryCode"])
}

func TestExtractUnknownEntityType(t *testing.T) {
	p := NewPipeline()
	_, err := p.ExtractFeatures("no-such-type", map[string]any{})
	assert.Error(t, err)
}

func TestExtractIgnoresUnknownFields(t *testing.T) {
	p := NewPipeline()
	vec, err := p.ExtractFeatures(EntityEmail, map[string]any{
		"email":        "a@b.com",
		"randomExtras": 42,
	})
	require.NoError(t, err)
	_, ok := vec.Get("randomExtras")
	assert.False(t, ok)
}
