// Package school はクラスと学期の参照サービスとハンドラーを提供します。
package school

import (
	"context"

	"github.com/yourusername/report-card/internal/authz"
	"github.com/yourusername/report-card/internal/models"
)

// ClassRepository はクラスの検索ができるストアが実装します。
type ClassRepository interface {
	Get(ctx context.Context, id int64) (*models.Class, error)
	ListBySchool(ctx context.Context, schoolID int64) ([]*models.Class, error)
}

// TermRepository は学期の検索ができるストアが実装します。
type TermRepository interface {
	ListBySchool(ctx context.Context, schoolID int64) ([]*models.Term, error)
}

// Service はクラスと学期の参照を提供します。
// クラスの可視性は認可ポリシーで絞り込み、学期は所属校の全員が参照できます。
type Service struct {
	classes ClassRepository
	terms   TermRepository
	policy  *authz.Policy
}

// NewService は学校サービスを作成します。
func NewService(classes ClassRepository, terms TermRepository, policy *authz.Policy) *Service {
	return &Service{classes: classes, terms: terms, policy: policy}
}

// ListClasses はユーザーがアクセスできるクラスの一覧を返します。
func (s *Service) ListClasses(ctx context.Context, user *models.User) ([]*models.Class, error) {
	ids, err := s.policy.AccessibleIDs(ctx, user, authz.KindClass)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	all, err := s.classes.ListBySchool(ctx, user.SchoolID)
	if err != nil {
		return nil, err
	}

	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	var list []*models.Class
	for _, class := range all {
		if _, ok := idSet[class.ID]; ok {
			list = append(list, class)
		}
	}
	return list, nil
}

// GetClass は ID でクラスを返します。存在しない場合とアクセス権が無い場合は
// どちらも nil を返します。
func (s *Service) GetClass(ctx context.Context, user *models.User, id int64) (*models.Class, error) {
	ok, err := s.policy.CanAccess(ctx, user, authz.KindClass, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.classes.Get(ctx, id)
}

// ListTerms は所属校の学期の一覧を返します。
// 学期はテナント内の共有データであり、役割による絞り込みはありません。
func (s *Service) ListTerms(ctx context.Context, user *models.User) ([]*models.Term, error) {
	return s.terms.ListBySchool(ctx, user.SchoolID)
}
