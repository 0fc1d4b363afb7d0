package postgresql

// migrations returns the schema migrations for step execution storage, keyed by
// version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS step_executions (
				id TEXT PRIMARY KEY,
				job_name TEXT NOT NULL,
				step_name TEXT NOT NULL,
				status TEXT NOT NULL,
				context BYTEA NOT NULL,
				exit_message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_step_executions_job_name ON step_executions (job_name);
			CREATE INDEX IF NOT EXISTS idx_step_executions_completed_at ON step_executions (completed_at);
		`,
	}
}
