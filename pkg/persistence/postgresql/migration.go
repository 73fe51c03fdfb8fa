package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create rules table
			CREATE TABLE rules (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger JSONB NOT NULL,
				actions JSONB NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT true,
				tags JSONB,
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_rules_is_active ON rules(is_active);
			CREATE INDEX idx_rules_created_at ON rules(created_at);
			CREATE INDEX idx_rules_deleted_at ON rules(deleted_at);
		`,
		2: `
			-- Create executions table
			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				rule_id UUID NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				trigger_data JSONB DEFAULT '{}',
				current_step INT NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'completed', 'failed', 'cancelled')),
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_rule_id ON executions(rule_id);
			CREATE INDEX idx_executions_user_id ON executions(user_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_started_at ON executions(started_at);
		`,
	}
}
