package screen

import (
	"reflect"
	"testing"

	"github.com/psantos/loro/internal/model"
)

func names(stories []model.Story) []string {
	out := make([]string, len(stories))
	for i, s := range stories {
		out[i] = s.Name
	}
	return out
}

func TestMergeStoriesPinsPlaceholderFirst(t *testing.T) {
	got := MergeStories(nil, "ana")
	if len(got) != 1 || got[0].Name != AddStoryName {
		t.Fatalf("MergeStories(nil) = %+v, want only the %q entry", got, AddStoryName)
	}
	if got[0].URL != "" {
		t.Errorf("placeholder url = %q, want empty", got[0].URL)
	}
}

func TestMergeStoriesSwapsSelfToFront(t *testing.T) {
	batch := []model.Story{
		{Name: "xavi", URL: "https://cdn/xavi"},
		{Name: "ana", URL: "https://cdn/ana"},
		{Name: "yuri", URL: "https://cdn/yuri"},
	}
	got := names(MergeStories(batch, "ana"))
	want := []string{AddStoryName, "ana", "xavi", "yuri"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged order = %v, want %v", got, want)
	}
}

func TestMergeStoriesSelfAbsentKeepsOrder(t *testing.T) {
	batch := []model.Story{
		{Name: "xavi", URL: "https://cdn/xavi"},
		{Name: "yuri", URL: "https://cdn/yuri"},
	}
	got := names(MergeStories(batch, "ana"))
	want := []string{AddStoryName, "xavi", "yuri"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged order = %v, want %v", got, want)
	}
}

func TestMergeStoriesFiltersBlankPairs(t *testing.T) {
	batch := []model.Story{
		{Name: "", URL: ""},
		{Name: "ana", URL: "https://cdn/ana"},
		{Name: "", URL: ""},
	}
	got := MergeStories(batch, "nobody")
	if len(got) != 2 {
		t.Fatalf("merged = %+v, want placeholder plus ana", got)
	}
	if got[1].Name != "ana" {
		t.Errorf("merged[1] = %+v, want ana", got[1])
	}
}

func TestMergeStoriesNoSwapWithTwoEntries(t *testing.T) {
	// Self already sits at index 1; the swap guard must not move it or
	// touch the placeholder.
	batch := []model.Story{{Name: "ana", URL: "https://cdn/ana"}}
	got := names(MergeStories(batch, "ana"))
	want := []string{AddStoryName, "ana"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged order = %v, want %v", got, want)
	}
}
