package types

// WorldStatus enumerates the lifecycle states of a world.
type WorldStatus string

const (
	// WorldRunning means the world's engine is stepping.
	WorldRunning WorldStatus = "running"
	// WorldStoppedByDeveloper means an operator stopped the world explicitly.
	WorldStoppedByDeveloper WorldStatus = "stoppedByDeveloper"
	// WorldInactive means the idle janitor stopped the world after nobody
	// viewed it for the idle timeout. A heartbeat restarts it.
	WorldInactive WorldStatus = "inactive"
)

// World ties together an engine, a map, and the documents that live inside
// the simulation. Exactly one world is the default world.
type World struct {
	ID         ID          `json:"id"`
	EngineID   ID          `json:"engineId"`
	MapID      ID          `json:"mapId"`
	Status     WorldStatus `json:"status"`
	IsDefault  bool        `json:"isDefault"`
	LastViewed int64       `json:"lastViewed"` // wall-clock ms of the latest heartbeat
}

// WorldMap is the static tile geometry of a world. Tile layers are row-major:
// layer[y][x]. An object tile of -1 is walkable; any other value blocks.
type WorldMap struct {
	ID          ID        `json:"id"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	TileDim     int       `json:"tileDim"`
	BgTiles     [][]int32 `json:"bgTiles,omitempty"`
	ObjectTiles [][]int32 `json:"objectTiles"`
}
