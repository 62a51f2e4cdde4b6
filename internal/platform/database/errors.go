package database

import (
	"errors"

	"gorm.io/gorm"
)

// IsDuplicateKeyError 判断错误是否来自唯一约束冲突
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
