package migrations

import "gorm.io/gorm"

type createPollingState struct{}

func (m *createPollingState) Up(grm *gorm.DB) error {
	query := `
		create table if not exists polling_state (
			name varchar primary key,
			last_block bigint not null check (last_block >= 0),
			updated_at timestamptz not null default now()
		);
	`
	return grm.Exec(query).Error
}

func (m *createPollingState) GetName() string {
	return "202501010000_pollingState"
}

type createContractEvents struct{}

func (m *createContractEvents) Up(grm *gorm.DB) error {
	queries := []string{
		`create table if not exists contract_events (
			id bigserial primary key,
			address varchar not null,
			block_number bigint not null,
			block_hash varchar not null default '',
			transaction_hash varchar not null,
			log_index bigint not null,
			data text not null,
			topics text[] not null default '{}',
			created_at timestamptz not null default now(),
			constraint uniq_contract_events_tx_log unique (transaction_hash, log_index)
		);`,
		`create index if not exists idx_contract_events_block_number on contract_events (block_number desc);`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *createContractEvents) GetName() string {
	return "202501010001_contractEvents"
}

type createValidatorRewards struct{}

func (m *createValidatorRewards) Up(grm *gorm.DB) error {
	query := `
		create table if not exists validator_rewards (
			id bigserial primary key,
			operator_address varchar not null,
			epoch bigint not null check (epoch > 0),
			reward_amount numeric(78, 0) not null check (reward_amount >= 0),
			claimed boolean not null default false,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now(),
			constraint uniq_validator_rewards_operator_epoch unique (operator_address, epoch)
		);
	`
	return grm.Exec(query).Error
}

func (m *createValidatorRewards) GetName() string {
	return "202501010002_validatorRewards"
}

type createRewardStrategyLocks struct{}

func (m *createRewardStrategyLocks) Up(grm *gorm.DB) error {
	query := `
		create table if not exists reward_strategy_locks (
			operator_address varchar primary key,
			strategy varchar not null,
			created_at timestamptz not null default now()
		);
	`
	return grm.Exec(query).Error
}

func (m *createRewardStrategyLocks) GetName() string {
	return "202501010003_rewardStrategyLocks"
}

type createRewardActions struct{}

func (m *createRewardActions) Up(grm *gorm.DB) error {
	query := `
		create table if not exists reward_actions (
			id uuid primary key default gen_random_uuid(),
			action_type varchar not null check (action_type in ('RESTAKING', 'SELL')),
			amount numeric(78, 0) not null check (amount > 0),
			average_price double precision,
			note text,
			created_at timestamptz not null default now()
		);
	`
	return grm.Exec(query).Error
}

func (m *createRewardActions) GetName() string {
	return "202501010004_rewardActions"
}
