package smo

// NodeType is the closed set of object kinds the explorer knows.
type NodeType int

// NodeType values.
const (
	TypeServer NodeType = iota
	TypeDatabase
	TypeRole
	TypeTablespace
	TypeSchema
	TypeTable
	TypeView
	TypeFunction
	TypeTriggerFunction
	TypeSequence
	TypeDataType
	TypeCollation
	TypeColumn
	TypeIndex
	TypeTrigger
)

var typeNames = [...]string{
	TypeServer:          "Server",
	TypeDatabase:        "Database",
	TypeRole:            "Role",
	TypeTablespace:      "Tablespace",
	TypeSchema:          "Schema",
	TypeTable:           "Table",
	TypeView:            "View",
	TypeFunction:        "Function",
	TypeTriggerFunction: "TriggerFunction",
	TypeSequence:        "Sequence",
	TypeDataType:        "DataType",
	TypeCollation:       "Collation",
	TypeColumn:          "Column",
	TypeIndex:           "Index",
	TypeTrigger:         "Trigger",
}

var typeCategories = [...]string{
	TypeServer:          "server",
	TypeDatabase:        "database",
	TypeRole:            "role",
	TypeTablespace:      "tablespace",
	TypeSchema:          "schema",
	TypeTable:           "table",
	TypeView:            "view",
	TypeFunction:        "function",
	TypeTriggerFunction: "trigger_function",
	TypeSequence:        "sequence",
	TypeDataType:        "datatype",
	TypeCollation:       "collation",
	TypeColumn:          "column",
	TypeIndex:           "index",
	TypeTrigger:         "trigger",
}

// String returns the type name used as nodeType on the wire.
func (t NodeType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Unknown"
	}
	return typeNames[t]
}

// Category returns the template bundle category of the type.
func (t NodeType) Category() string {
	if t < 0 || int(t) >= len(typeCategories) {
		return ""
	}
	return typeCategories[t]
}

// AllTypes lists every node type in declaration order.
func AllTypes() []NodeType {
	out := make([]NodeType, len(typeNames))
	for i := range typeNames {
		out[i] = NodeType(i)
	}
	return out
}
