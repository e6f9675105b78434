package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (q queries) ListGlossaryTerms(ctx context.Context, workID string) ([]GlossaryTerm, error) {
	rows, err := q.query(ctx, `
		SELECT id, work_id, original, translated, note, created_at
		FROM glossary_terms
		WHERE work_id=?
		ORDER BY original
	`, workID)
	if err != nil {
		return nil, fmt.Errorf("list glossary terms: %w", err)
	}
	defer rows.Close()

	terms := make([]GlossaryTerm, 0)
	for rows.Next() {
		var (
			term GlossaryTerm
			note sql.NullString
		)
		if err := rows.Scan(&term.ID, &term.WorkID, &term.Original, &term.Translated, &note, timeScanner{&term.CreatedAt}); err != nil {
			return nil, fmt.Errorf("scan glossary term: %w", err)
		}
		term.Note = nullableString(note)
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

func (q queries) InsertGlossaryTerm(ctx context.Context, term GlossaryTerm) error {
	_, err := q.exec(ctx, `
		INSERT INTO glossary_terms (id, work_id, original, translated, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, term.ID, term.WorkID, term.Original, term.Translated, term.Note, q.timeArg(term.CreatedAt))
	if err != nil {
		return wrapWrite("insert glossary term", err)
	}
	return nil
}
