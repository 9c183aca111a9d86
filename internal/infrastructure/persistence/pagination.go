package persistence

import "gorm.io/gorm"

// paginate applies offset and limit when both page and pageSize are set
func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	return query
}
