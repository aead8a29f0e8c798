package wsstore

import (
	"context"
	"fmt"
)

// UserStorageUsed sums attributes.size over file nodes created by userID
// (§4.2, scenario S6). Nulls and missing sizes contribute zero.
func (s *Store) UserStorageUsed(ctx context.Context, userID string) (int64, error) {
	var total int64

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CAST(json_extract(attributes, '$.size') AS INTEGER)), 0)
		FROM nodes
		WHERE type = 'file' AND created_by = ?`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("wsstore: sum user storage: %w", err)
	}

	return total, nil
}
