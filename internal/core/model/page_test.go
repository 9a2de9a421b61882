package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_FiltersAreCopied(t *testing.T) {
	in := map[string]string{"category": "hanh-dong", "sort_type": "desc"}
	req := NewPageRequest("category", in, 2)

	in["category"] = "tinh-cam"
	out := req.Filters()
	out["country"] = "han-quoc"

	assert.Equal(t, map[string]string{"category": "hanh-dong", "sort_type": "desc"}, req.Filters())
	assert.Equal(t, "category", req.Resource())
	assert.Equal(t, 2, req.Page())
}

func TestPageRequest_PageDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, NewPageRequest("search", nil, 0).Page())
	assert.Empty(t, NewPageRequest("search", nil, -3).Filters())
}

func TestFilterSet_Map(t *testing.T) {
	f := FilterSet{Category: "hanh-dong", SortOrder: "asc", Language: "vietsub", Limit: 24}
	assert.Equal(t, map[string]string{
		"category":  "hanh-dong",
		"sort_type": "asc",
		"sort_lang": "vietsub",
	}, f.Map())
	assert.Empty(t, FilterSet{}.Map())
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 3, TotalPages(45, 20))
	assert.Equal(t, 2, TotalPages(40, 20))
	assert.Equal(t, 0, TotalPages(0, 20))
	assert.Equal(t, 0, TotalPages(10, 0))
}
