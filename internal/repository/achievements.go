package repository

import (
	"context"
	"database/sql"

	"github.com/yourusername/report-card/internal/models"
)

// AchievementCategoryRepository は成果カテゴリーテーブルへのアクセスを提供します。
type AchievementCategoryRepository struct {
	db *sql.DB
}

// NewAchievementCategoryRepository は AchievementCategoryRepository を作成します。
func NewAchievementCategoryRepository(db *sql.DB) *AchievementCategoryRepository {
	return &AchievementCategoryRepository{db: db}
}

// ListCategories は全カテゴリーを返します。カテゴリーは学校間で共有される参照データです。
func (r *AchievementCategoryRepository) ListCategories(ctx context.Context) ([]*models.AchievementCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, COALESCE(description, ''), min_improvement_percent, min_score
        FROM achievement_categories
        ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.AchievementCategory
	for rows.Next() {
		var c models.AchievementCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description,
			&c.MinImprovementPercent, &c.MinScore); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}
