// Package students は生徒情報の参照サービスとハンドラーを提供します。
package students

import (
	"context"

	"github.com/yourusername/report-card/internal/authz"
	"github.com/yourusername/report-card/internal/models"
)

// Repository は生徒の検索ができるストアが実装します。
type Repository interface {
	Get(ctx context.Context, id int64) (*models.Student, error)
	ListBySchool(ctx context.Context, schoolID int64) ([]*models.Student, error)
	ListByClasses(ctx context.Context, schoolID int64, classIDs []int64) ([]*models.Student, error)
}

// Service は認可ポリシーを通した生徒情報の参照を提供します。
type Service struct {
	students Repository
	policy   *authz.Policy
}

// NewService は生徒サービスを作成します。
func NewService(students Repository, policy *authz.Policy) *Service {
	return &Service{students: students, policy: policy}
}

// List はユーザーがアクセスできる生徒の一覧を返します。
// 担任教師は割り当てクラスの生徒のみ、学年主任と管理者は所属校の全生徒です。
func (s *Service) List(ctx context.Context, user *models.User) ([]*models.Student, error) {
	ids, err := s.policy.AccessibleIDs(ctx, user, authz.KindStudent)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// アクセス可能集合は学校・割り当てで既に絞り込まれている
	switch user.Role {
	case models.RoleYearHead, models.RoleAdmin:
		return s.students.ListBySchool(ctx, user.SchoolID)
	default:
		return s.listByIDs(ctx, user, ids)
	}
}

// Get は ID で生徒を返します。存在しない場合とアクセス権が無い場合は
// どちらも nil を返し、呼び出し側が区別できないようにします。
func (s *Service) Get(ctx context.Context, user *models.User, id int64) (*models.Student, error) {
	ok, err := s.policy.CanAccess(ctx, user, authz.KindStudent, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.students.Get(ctx, id)
}

// ListByClass はクラスに属する生徒を返します。クラス自体にアクセスできない場合は
// 存在しないのと同じく nil を返します。
func (s *Service) ListByClass(ctx context.Context, user *models.User, classID int64) ([]*models.Student, bool, error) {
	ok, err := s.policy.CanAccess(ctx, user, authz.KindClass, classID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	list, err := s.students.ListByClasses(ctx, user.SchoolID, []int64{classID})
	if err != nil {
		return nil, false, err
	}
	return list, true, nil
}

func (s *Service) listByIDs(ctx context.Context, user *models.User, ids []int64) ([]*models.Student, error) {
	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	all, err := s.students.ListBySchool(ctx, user.SchoolID)
	if err != nil {
		return nil, err
	}

	var list []*models.Student
	for _, st := range all {
		if _, ok := idSet[st.ID]; ok {
			list = append(list, st)
		}
	}
	return list, nil
}
