package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSection(t *testing.T) {
	tests := []struct {
		input   string
		want    Section
		wantErr bool
	}{
		{"featured", SectionFeatured, false},
		{"popular", SectionPopular, false},
		{"new", SectionNew, false},
		{"  Featured ", SectionFeatured, false},
		{"POPULAR", SectionPopular, false},
		{"trending", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSection(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
		} else {
			require.NoError(t, err, "input %q", tt.input)
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestSectionPattern(t *testing.T) {
	assert.Equal(t, "Featured in", SectionFeatured.Pattern())
	assert.Equal(t, "Most popular in", SectionPopular.Pattern())
	assert.Equal(t, "New in", SectionNew.Pattern())
}

func TestCategoryURL(t *testing.T) {
	assert.Equal(t, "https://www.slideshare.net/category/business", CategoryURL("business"))
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory("business"))
	assert.True(t, IsValidCategory("devices-hardware"))
	assert.False(t, IsValidCategory("Business"))
	assert.False(t, IsValidCategory("cooking"))
}

func TestExpandTasksSingle(t *testing.T) {
	tasks, err := ExpandTasks("business", "popular", 20)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "business", tasks[0].Category)
	assert.Equal(t, SectionPopular, tasks[0].Section)
	assert.Equal(t, 20, tasks[0].TargetCount)
	assert.Equal(t, "business_popular", tasks[0].Name())
}

func TestExpandTasksAllSections(t *testing.T) {
	tasks, err := ExpandTasks("design", "all", 5)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, SectionFeatured, tasks[0].Section)
	assert.Equal(t, SectionPopular, tasks[1].Section)
	assert.Equal(t, SectionNew, tasks[2].Section)
}

func TestExpandTasksAllBoth(t *testing.T) {
	tasks, err := ExpandTasks("all", "all", 10)
	require.NoError(t, err)
	assert.Len(t, tasks, len(Categories)*len(Sections))
	// categories vary slowest
	assert.Equal(t, Categories[0], tasks[0].Category)
	assert.Equal(t, Categories[0], tasks[2].Category)
	assert.Equal(t, Categories[1], tasks[3].Category)
}

func TestExpandTasksErrors(t *testing.T) {
	_, err := ExpandTasks("cooking", "popular", 10)
	assert.Error(t, err)

	_, err = ExpandTasks("business", "trending", 10)
	assert.Error(t, err)

	_, err = ExpandTasks("business", "popular", 0)
	assert.Error(t, err)
}
