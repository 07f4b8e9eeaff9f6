package db

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "create command history table",
		sql: `
			CREATE TABLE IF NOT EXISTS command_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				line TEXT NOT NULL,
				entered_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`,
	},
}
