// Package course holds the pure course-progression and overview logic.
package course

import "github.com/mlehnert/videokurs-bot/internal/domain/entities"

// nextLevel maps a level to its successor. Advanced is the ceiling; Entry is
// only ever left via placement, but the mapping totalizes it anyway.
var nextLevel = map[entities.Level]entities.Level{
	entities.LevelEntry:        entities.LevelBeginner,
	entities.LevelBeginner:     entities.LevelIntermediate,
	entities.LevelIntermediate: entities.LevelAdvanced,
	entities.LevelAdvanced:     entities.LevelAdvanced,
}

// NextLevel returns the level that follows the given one. Unknown levels fall
// back to Beginner, the first real level after placement.
func NextLevel(level entities.Level) entities.Level {
	if next, ok := nextLevel[level]; ok {
		return next
	}
	return entities.LevelBeginner
}

// Advance moves a position one lesson forward. When the level's last lesson
// is passed, it moves to lesson 1 of the next level. At the top level the
// video number wraps to 1 and the level stays Advanced.
func Advance(level entities.Level, videoNumber, maxPerLevel int) (entities.Level, int) {
	if videoNumber+1 <= maxPerLevel {
		return level, videoNumber + 1
	}
	return NextLevel(level), 1
}
