package eventlog

// Event kinds appended to the log.
const (
	BoardCreated     = "board.created"
	BoardUpdated     = "board.updated"
	BoardArchived    = "board.archived"
	BoardUnarchived  = "board.unarchived"
	ColumnCreated    = "column.created"
	ColumnUpdated    = "column.updated"
	ColumnDeleted    = "column.deleted"
	ColumnReordered  = "column.reordered"
	ColumnArchived   = "column.archived"
	ColumnUnarchived = "column.unarchived"
	TaskCreated      = "task.created"
	TaskUpdated      = "task.updated"
	TaskMoved        = "task.moved"
	TaskClaimed      = "task.claimed"
	TaskReleased     = "task.released"
	TaskCommented    = "task.commented"
	TaskArchived     = "task.archived"
	TaskUnarchived   = "task.unarchived"
	TaskDeleted      = "task.deleted"
)

// Kinds lists every kind that can appear in the log, in a stable order.
var Kinds = []string{
	BoardCreated, BoardUpdated, BoardArchived, BoardUnarchived,
	ColumnCreated, ColumnUpdated, ColumnDeleted, ColumnReordered,
	ColumnArchived, ColumnUnarchived,
	TaskCreated, TaskUpdated, TaskMoved, TaskClaimed, TaskReleased,
	TaskCommented, TaskArchived, TaskUnarchived, TaskDeleted,
}

var knownKinds = func() map[string]bool {
	m := make(map[string]bool, len(Kinds))
	for _, k := range Kinds {
		m[k] = true
	}
	return m
}()

// ValidKind reports whether kind is a loggable event kind.
func ValidKind(kind string) bool {
	return knownKinds[kind]
}
