package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/consent"
)

// ListByConsentIDs returns the history entries for the given consents,
// newest first. History rows are written only inside ledger transactions;
// this is the read side.
func (s *Store) ListByConsentIDs(ctx context.Context, ids []uuid.UUID) ([]consent.HistoryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, consent_id, changed_by, previous_status, new_status, remarks, created_at
		 FROM consent_history
		 WHERE consent_id = ANY($1::uuid[])
		 ORDER BY created_at DESC`,
		idStrs,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []consent.HistoryEntry
	for rows.Next() {
		var e consent.HistoryEntry
		err := rows.Scan(&e.ID, &e.ConsentID, &e.ChangedBy, &e.PreviousStatus, &e.NewStatus, &e.Remarks, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
