// File: internal/platform/database/errors.go
package database

import (
	"errors"
	"strings"

	"deals_marketplace/internal/common"

	"gorm.io/gorm"
)

// TranslateError maps a gorm or driver error onto the common taxonomy.
// what names the entity for NotFound/AlreadyExists details. Nil stays nil.
func TranslateError(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := common.AsError(err); ok {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.ErrNotFound.WithDetails(what + " not found.").Wrap(err)
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(msg, "unique constraint failed"),
		strings.Contains(msg, "duplicate key value"):
		return common.ErrAlreadyExists.WithDetails(what + " already exists.").Wrap(err)
	case errors.Is(err, gorm.ErrForeignKeyViolated),
		strings.Contains(msg, "foreign key constraint failed"),
		strings.Contains(msg, "violates foreign key"):
		return common.ErrNotFound.WithDetails("A referenced user or product does not exist.").Wrap(err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated),
		strings.Contains(msg, "check constraint failed"),
		strings.Contains(msg, "violates check constraint"):
		return common.ErrValidation.WithDetails("A value is outside its permitted range.").Wrap(err)
	default:
		return common.ErrStorage.Wrap(err)
	}
}

// IsDuplicate reports whether err is a unique-key violation in either raw or translated form.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(TranslateError(err, "record"), common.ErrAlreadyExists)
}
