package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decrementQuery = `SET stock_quantity = i\.stock_quantity - \$2`

func TestLedger_Decrement(t *testing.T) {
	tests := []struct {
		name    string
		result  error
		wantErr string
	}{
		{name: "decrements existing record"},
		{name: "database failure", result: errors.New("connection reset"), wantErr: "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			exec := mock.ExpectExec(decrementQuery).WithArgs("ITEM-001", 3)
			if tt.result != nil {
				exec.WillReturnError(tt.result)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err = NewLedger().Decrement(context.Background(), db, "ITEM-001", 3)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLedger_DecrementCreatesMissingRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO inventory AS i \(product_id, stock_quantity, updated_at\)\s+VALUES \(\$1, -\$2::integer, NOW\(\)\)\s+ON CONFLICT \(product_id\) DO UPDATE`).
		WithArgs("ITEM-NEW", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewLedger().Decrement(context.Background(), db, "ITEM-NEW", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
