package tour

import "fmt"

// IssueKind classifies a scene graph problem. None of them block a save.
type IssueKind string

const (
	IssueDuplicateScene IssueKind = "duplicate_scene_id"
	IssueMissingImage   IssueKind = "missing_image"
	IssueDanglingLink   IssueKind = "dangling_link"
	IssueSelfLink       IssueKind = "self_link"
)

// Issue describes one problem found by CheckGraph.
type Issue struct {
	Kind      IssueKind `json:"kind"`
	SceneID   string    `json:"scene_id"`
	HotspotID string    `json:"hotspot_id,omitempty"`
	Message   string    `json:"message"`
}

// CheckGraph reports structural problems in a tour's scenes. Link hotspots
// whose target is missing are kept; the viewer treats them as no-ops.
func CheckGraph(scenes []Scene) []Issue {
	var issues []Issue
	ids := make(map[string]int, len(scenes))
	for _, s := range scenes {
		ids[s.ID]++
	}

	reported := make(map[string]bool)
	for _, s := range scenes {
		if ids[s.ID] > 1 && !reported[s.ID] {
			reported[s.ID] = true
			issues = append(issues, Issue{
				Kind:    IssueDuplicateScene,
				SceneID: s.ID,
				Message: fmt.Sprintf("scene id %q is used %d times", s.ID, ids[s.ID]),
			})
		}
		if s.ImageURL == "" {
			issues = append(issues, Issue{
				Kind:    IssueMissingImage,
				SceneID: s.ID,
				Message: "scene has no panorama image",
			})
		}
		for _, h := range s.Hotspots {
			if h.Type != HotspotLink || h.TargetScene == "" {
				continue
			}
			switch {
			case h.TargetScene == s.ID:
				issues = append(issues, Issue{
					Kind:      IssueSelfLink,
					SceneID:   s.ID,
					HotspotID: h.ID,
					Message:   "link hotspot points at its own scene",
				})
			case ids[h.TargetScene] == 0:
				issues = append(issues, Issue{
					Kind:      IssueDanglingLink,
					SceneID:   s.ID,
					HotspotID: h.ID,
					Message:   fmt.Sprintf("target scene %q does not exist", h.TargetScene),
				})
			}
		}
	}
	return issues
}
