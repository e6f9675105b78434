package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const contractColumns = `id, work_id, author_id, editor_id, chapter_start, chapter_end, active, created_at, completed_at`

func scanContract(row rowScanner) (Contract, error) {
	var (
		contract Contract
		end      sql.NullInt64
	)
	err := row.Scan(
		&contract.ID, &contract.WorkID, &contract.AuthorID, &contract.EditorID, &contract.ChapterStart, &end,
		&contract.Active, timeScanner{&contract.CreatedAt}, nullTimeScanner{&contract.CompletedAt},
	)
	if err != nil {
		return Contract{}, err
	}
	contract.ChapterEnd = nullableInt(end)
	return contract, nil
}

// ActiveContract returns sql.ErrNoRows when the editor holds no active
// contract for the work.
func (q queries) ActiveContract(ctx context.Context, workID, editorID string) (Contract, error) {
	contract, err := scanContract(q.queryRow(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE work_id=? AND editor_id=? AND active=?
		ORDER BY created_at DESC
		LIMIT 1
	`, workID, editorID, true))
	if err != nil {
		return Contract{}, fmt.Errorf("active contract: %w", err)
	}
	return contract, nil
}

func (q queries) HasActiveContract(ctx context.Context, workID string) (bool, error) {
	var count int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM contracts WHERE work_id=? AND active=?`, workID, true).Scan(&count); err != nil {
		return false, fmt.Errorf("count active contracts: %w", err)
	}
	return count > 0, nil
}

func (q queries) GetContract(ctx context.Context, contractID string) (Contract, error) {
	contract, err := scanContract(q.queryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=?`, contractID))
	if err != nil {
		return Contract{}, fmt.Errorf("get contract: %w", err)
	}
	return contract, nil
}

func (q queries) ListContracts(ctx context.Context, workID string) ([]Contract, error) {
	rows, err := q.query(ctx, `SELECT `+contractColumns+` FROM contracts WHERE work_id=? ORDER BY created_at DESC, id`, workID)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	contracts := make([]Contract, 0)
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

func (q queries) InsertContract(ctx context.Context, contract Contract) error {
	_, err := q.exec(ctx, `
		INSERT INTO contracts (id, work_id, author_id, editor_id, chapter_start, chapter_end, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, contract.ID, contract.WorkID, contract.AuthorID, contract.EditorID, contract.ChapterStart,
		contract.ChapterEnd, contract.Active, q.timeArg(contract.CreatedAt))
	if err != nil {
		return wrapWrite("insert contract", err)
	}
	return nil
}

// DeactivateContracts ends every active contract the editor holds on the work.
func (q queries) DeactivateContracts(ctx context.Context, workID, editorID string, at time.Time) error {
	_, err := q.exec(ctx, `UPDATE contracts SET active=?, completed_at=? WHERE work_id=? AND editor_id=? AND active=?`,
		false, q.timeArg(at), workID, editorID, true)
	if err != nil {
		return fmt.Errorf("deactivate contracts: %w", err)
	}
	return nil
}

func (q queries) CompleteContract(ctx context.Context, contractID string, at time.Time) error {
	res, err := q.exec(ctx, `UPDATE contracts SET active=?, completed_at=? WHERE id=? AND active=?`,
		false, q.timeArg(at), contractID, true)
	if err != nil {
		return fmt.Errorf("complete contract: %w", err)
	}
	return requireRow(res, "complete contract")
}
