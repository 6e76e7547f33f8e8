package types

// Standard table names for Cupboard.GetTable.
const (
	TasksTable = "tasks"
	LogsTable  = "logs"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	TasksTable,
	LogsTable,
}

// Filter keys understood by Table.Fetch.
const (
	FilterStatus      = "status"       // tasks: Status or string
	FilterAssignee    = "assignee"     // tasks: Assignee or string
	FilterTaskID      = "task_id"      // logs: string
	FilterLimit       = "limit"        // logs: int, 0 means unlimited
	FilterNewestFirst = "newest_first" // logs: bool
)
