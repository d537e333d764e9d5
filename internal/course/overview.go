package course

import (
	"sort"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

// VideoStatus annotates a catalog entry relative to the user's position.
type VideoStatus string

const (
	StatusCompleted VideoStatus = "completed"
	StatusCurrent   VideoStatus = "current"
	StatusUpcoming  VideoStatus = "upcoming"
)

// OverviewVideo is one annotated lesson in the projection.
type OverviewVideo struct {
	Video  *entities.VideoInfo
	Status VideoStatus
	// Reachable reports whether the lesson may be selected from the
	// overview: completed lessons and the current one.
	Reachable bool
	// IsReview reports whether selecting the lesson is a review, i.e. it is
	// not the user's current true position.
	IsReview bool
}

// OverviewLevel groups the annotated lessons of one level.
type OverviewLevel struct {
	Level     entities.Level
	IsCurrent bool
	Videos    []OverviewVideo
}

// Overview is the full per-level completion annotation of the catalog.
type Overview struct {
	Levels    []OverviewLevel
	Completed int
	Total     int
}

// Percent returns the completed share as a truncated integer percentage.
func (o *Overview) Percent() int {
	if o.Total == 0 {
		return 0
	}
	return o.Completed * 100 / o.Total
}

// Project annotates the catalog against the user's (level, videoNumber).
// Levels appear in curriculum order with unrecognized levels appended in
// first-encounter order; lessons ascend by video number. The result is fully
// deterministic for a fixed catalog and position.
func Project(catalog []*entities.VideoInfo, userLevel entities.Level, currentVideoNumber int) *Overview {
	byLevel := make(map[entities.Level][]*entities.VideoInfo)
	var levels []entities.Level
	seen := make(map[entities.Level]bool)

	for _, l := range entities.LevelOrder {
		seen[l] = true
	}
	for _, v := range catalog {
		if _, ok := byLevel[v.Level]; !ok && !seen[v.Level] {
			levels = append(levels, v.Level)
			seen[v.Level] = true
		}
		byLevel[v.Level] = append(byLevel[v.Level], v)
	}

	ordered := make([]entities.Level, 0, len(byLevel))
	for _, l := range entities.LevelOrder {
		if _, ok := byLevel[l]; ok {
			ordered = append(ordered, l)
		}
	}
	ordered = append(ordered, levels...)

	ov := &Overview{Total: len(catalog)}
	currentLevelReached := false

	for _, level := range ordered {
		group := OverviewLevel{Level: level, IsCurrent: level == userLevel}

		videos := byLevel[level]
		sort.SliceStable(videos, func(i, j int) bool {
			return videos[i].VideoNumber < videos[j].VideoNumber
		})

		for _, v := range videos {
			var status VideoStatus
			switch {
			case group.IsCurrent && v.VideoNumber < currentVideoNumber:
				status = StatusCompleted
			case group.IsCurrent && v.VideoNumber == currentVideoNumber:
				status = StatusCurrent
			case group.IsCurrent:
				status = StatusUpcoming
			case !currentLevelReached:
				// Levels before the current one are fully completed.
				status = StatusCompleted
			default:
				status = StatusUpcoming
			}

			if status == StatusCompleted {
				ov.Completed++
			}

			group.Videos = append(group.Videos, OverviewVideo{
				Video:     v,
				Status:    status,
				Reachable: status != StatusUpcoming,
				IsReview:  status == StatusCompleted,
			})
		}

		if group.IsCurrent {
			currentLevelReached = true
		}

		ov.Levels = append(ov.Levels, group)
	}

	return ov
}
