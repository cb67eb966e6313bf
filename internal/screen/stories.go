package screen

import "github.com/psantos/loro/internal/model"

// AddStoryName labels the create-story affordance pinned at index 0.
const AddStoryName = "Add Story"

// MergeStories builds the story strip from one chunk delivery: the
// create-story placeholder first, then the received entries with blank
// pairs filtered, then the caller's own story swapped into index 1 when
// it landed further down. The swap is a single best-effort reordering
// redone from scratch on every delivery, not a stable sort.
func MergeStories(batch []model.Story, selfUsername string) []model.Story {
	merged := []model.Story{{Name: AddStoryName, URL: ""}}
	for _, s := range batch {
		if s.Name == "" && s.URL == "" {
			continue
		}
		merged = append(merged, s)
	}

	selfIdx := -1
	for i, s := range merged {
		if s.Name == selfUsername {
			selfIdx = i
			break
		}
	}
	if selfIdx != -1 && len(merged) > 2 {
		merged[selfIdx], merged[1] = merged[1], merged[selfIdx]
	}
	return merged
}
