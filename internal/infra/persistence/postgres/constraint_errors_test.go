package postgres

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestConstraintClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		check  func(error) bool
		expect bool
	}{
		{name: "gorm duplicated key", err: errors.Wrap(gorm.ErrDuplicatedKey, "insert"), check: isUniqueConstraintViolation, expect: true},
		{name: "pg unique sqlstate", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx" (SQLSTATE 23505)`), check: isUniqueConstraintViolation, expect: true},
		{name: "gorm foreign key", err: gorm.ErrForeignKeyViolated, check: isForeignKeyConstraintViolation, expect: true},
		{name: "pg not null", err: errors.New(`null value in column "title" violates not-null constraint (SQLSTATE 23502)`), check: isNotNullConstraintViolation, expect: true},
		{name: "pg check", err: errors.New(`new row violates check constraint "chk_type" (SQLSTATE 23514)`), check: isCheckConstraintViolation, expect: true},
		{name: "unrelated", err: errors.New("connection reset by peer"), check: isUniqueConstraintViolation, expect: false},
		{name: "nil", err: nil, check: isNotNullConstraintViolation, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.check(tt.err))
		})
	}
}
