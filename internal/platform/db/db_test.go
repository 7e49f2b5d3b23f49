package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert attendance: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsDuplicateKey(errors.New("boom")))
	assert.False(t, IsDuplicateKey(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsForeignKeyViolation(&mysql.MySQLError{Number: 1062}))
}

func TestIsRowReferenced(t *testing.T) {
	assert.True(t, IsRowReferenced(fmt.Errorf("delete location: %w", &mysql.MySQLError{Number: 1451})))
	assert.False(t, IsRowReferenced(&mysql.MySQLError{Number: 1452}))
}
