package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	f, err := ParseField("publishedAt")
	require.NoError(t, err)
	assert.Equal(t, FieldPublishedAt, f)
	assert.Equal(t, "Published At", f.Title())

	_, err = ParseField("author")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestFieldSet_WithWithout(t *testing.T) {
	base := FieldSet{FieldTitle}

	added := base.With(FieldBody)
	assert.Equal(t, FieldSet{FieldTitle, FieldBody}, added)
	assert.Equal(t, FieldSet{FieldTitle}, base, "original set must not change")

	assert.Equal(t, FieldSet{FieldTitle}, base.With(FieldTitle), "no duplicates")
	assert.Equal(t, FieldSet{}, base.Without(FieldTitle))
	assert.Equal(t, FieldSet{FieldTitle}, base.Without(FieldSlug))
}

func TestContent_GetSet(t *testing.T) {
	var c Content

	_, ok := c.Get(FieldTitle)
	assert.False(t, ok)

	require.NoError(t, c.Set(FieldTitle, "Hello"))
	v, ok := c.Get(FieldTitle)
	require.True(t, ok)
	assert.Equal(t, "Hello", v)

	require.NoError(t, c.Set(FieldTitle, nil))
	assert.Nil(t, c.Title)

	err := c.Set(FieldSlug, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestContent_CloneIsDeep(t *testing.T) {
	c := Content{
		Title: String("A"),
		Image: &Image{AssetRef: "image-1", Hotspot: &Hotspot{X: 0.5, Y: 0.5}},
		Body:  Body{{Key: "b1", Text: "one"}},
	}
	cp := c.Clone()
	*cp.Title = "B"
	cp.Image.Hotspot.X = 0.1
	cp.Body[0].Text = "changed"

	assert.Equal(t, "A", *c.Title)
	assert.Equal(t, 0.5, c.Image.Hotspot.X)
	assert.Equal(t, "one", c.Body[0].Text)
}

func TestContent_EqualTime(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := Content{PublishedAt: &ts}
	assert.True(t, c.Equal(FieldPublishedAt, ts.In(time.FixedZone("CET", 3600))))
	assert.False(t, c.Equal(FieldPublishedAt, ts.Add(time.Second)))
	assert.True(t, c.Equal(FieldTitle, nil))
	assert.False(t, c.Equal(FieldTitle, "x"))
}

func TestDecodeValues(t *testing.T) {
	raw := map[string]json.RawMessage{
		"title":       json.RawMessage(`"Hello"`),
		"publishedAt": json.RawMessage(`"2024-05-01T12:00:00Z"`),
		"image":       json.RawMessage(`{"assetRef":"image-abc","alt":"cat"}`),
		"body":        json.RawMessage(`[{"_key":"a","text":"hi"}]`),
		"slug":        json.RawMessage(`null`),
	}
	values, err := DecodeValues(raw)
	require.NoError(t, err)

	assert.Equal(t, "Hello", values[FieldTitle])
	assert.Equal(t, Image{AssetRef: "image-abc", Alt: "cat"}, values[FieldImage])
	assert.Equal(t, Body{{Key: "a", Text: "hi"}}, values[FieldBody])
	assert.Nil(t, values[FieldSlug])
	assert.Contains(t, values, FieldSlug)
	assert.Equal(t, []Field{FieldTitle, FieldSlug, FieldPublishedAt, FieldImage, FieldBody}, values.Fields())

	_, err = DecodeValues(map[string]json.RawMessage{"title": json.RawMessage(`12`)})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
