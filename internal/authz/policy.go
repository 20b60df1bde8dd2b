// Package authz はテナント分離と役割に基づく認可ポリシーを提供します。
//
// すべてのドメインサービスはリソースを返却・変更する前にこのポリシーを通します。
// 評価は常にテナント（学校）の一致判定から始まり、役割のロジックにバグがあっても
// 他校のデータが漏れないようにしています。読み取り権限があるリソースには書き込み
// 権限もあります（この系には独立した変更権限は存在しません）。
package authz

import (
	"context"

	"github.com/yourusername/report-card/internal/models"
)

// ResourceKind はポリシーが扱うリソース種別です。
type ResourceKind string

const (
	// KindStudent は生徒リソースです。
	KindStudent ResourceKind = "student"
	// KindClass はクラスリソースです。
	KindClass ResourceKind = "class"
)

// Directory はポリシー評価に必要な参照をまとめたインターフェースです。
type Directory interface {
	// AssignedClassIDs は教師に割り当てられたクラスの ID を返します。
	AssignedClassIDs(ctx context.Context, teacherID int64) ([]int64, error)
	// AssignmentExists は教師とクラスの割り当て行が存在するかを返します。
	AssignmentExists(ctx context.Context, teacherID, classID int64) (bool, error)
	// StudentTenantClass は生徒の所属校とクラスを返します。存在しない場合は found=false です。
	StudentTenantClass(ctx context.Context, studentID int64) (schoolID, classID int64, found bool, err error)
	// ClassTenant はクラスの所属校を返します。存在しない場合は found=false です。
	ClassTenant(ctx context.Context, classID int64) (schoolID int64, found bool, err error)
	// StudentIDsBySchool は学校の全生徒の ID を返します。
	StudentIDsBySchool(ctx context.Context, schoolID int64) ([]int64, error)
	// StudentIDsByClasses は指定クラス群の生徒の ID を返します（学校でも絞り込みます）。
	StudentIDsByClasses(ctx context.Context, schoolID int64, classIDs []int64) ([]int64, error)
	// ClassIDsBySchool は学校の全クラスの ID を返します。
	ClassIDsBySchool(ctx context.Context, schoolID int64) ([]int64, error)
}

// Policy は役割ごとのスコープ戦略を束ねた認可の入口です。
type Policy struct {
	dir Directory
}

// NewPolicy はポリシーを作成します。
func NewPolicy(dir Directory) *Policy {
	return &Policy{dir: dir}
}

// AccessibleIDs はユーザーがアクセスできるリソース ID の集合を返します。
func (p *Policy) AccessibleIDs(ctx context.Context, user *models.User, kind ResourceKind) ([]int64, error) {
	return p.scopeFor(user).accessibleIDs(ctx, user, kind)
}

// CanAccess はユーザーが指定リソースにアクセスできるかを返します。
// テナント不一致は役割にかかわらず常に false です。
func (p *Policy) CanAccess(ctx context.Context, user *models.User, kind ResourceKind, id int64) (bool, error) {
	// テナント分離を役割ロジックより先に無条件で判定する
	schoolID, classID, found, err := p.tenantOf(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if !found || schoolID != user.SchoolID {
		return false, nil
	}

	return p.scopeFor(user).canAccessInTenant(ctx, user, kind, id, classID)
}

// scope は役割ごとのアクセス範囲の戦略です。すべての実装は同じ契約を持ちます。
type scope interface {
	accessibleIDs(ctx context.Context, user *models.User, kind ResourceKind) ([]int64, error)
	// canAccessInTenant はテナント一致が確認済みのリソースに対する役割判定です。
	canAccessInTenant(ctx context.Context, user *models.User, kind ResourceKind, id, classID int64) (bool, error)
}

func (p *Policy) scopeFor(user *models.User) scope {
	switch user.Role {
	case models.RoleFormTeacher:
		return &assignedScope{dir: p.dir}
	case models.RoleYearHead, models.RoleAdmin:
		return &schoolWideScope{dir: p.dir}
	default:
		// 未知の役割には何も許可しない
		return deniedScope{}
	}
}

func (p *Policy) tenantOf(ctx context.Context, kind ResourceKind, id int64) (schoolID, classID int64, found bool, err error) {
	switch kind {
	case KindStudent:
		return p.dir.StudentTenantClass(ctx, id)
	case KindClass:
		schoolID, found, err = p.dir.ClassTenant(ctx, id)
		return schoolID, id, found, err
	default:
		return 0, 0, false, nil
	}
}

// assignedScope は担任教師のスコープです。明示的な割り当て行から到達できる
// リソースのみにアクセスでき、テナント一致と常に交差されます。
type assignedScope struct {
	dir Directory
}

func (s *assignedScope) accessibleIDs(ctx context.Context, user *models.User, kind ResourceKind) ([]int64, error) {
	classIDs, err := s.dir.AssignedClassIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(classIDs) == 0 {
		return nil, nil
	}

	switch kind {
	case KindStudent:
		return s.dir.StudentIDsByClasses(ctx, user.SchoolID, classIDs)
	case KindClass:
		// 割り当てはテナント内で作られるが、テナント一致をここでも確認する
		ids := make([]int64, 0, len(classIDs))
		for _, classID := range classIDs {
			schoolID, found, err := s.dir.ClassTenant(ctx, classID)
			if err != nil {
				return nil, err
			}
			if found && schoolID == user.SchoolID {
				ids = append(ids, classID)
			}
		}
		return ids, nil
	default:
		return nil, nil
	}
}

func (s *assignedScope) canAccessInTenant(ctx context.Context, user *models.User, kind ResourceKind, id, classID int64) (bool, error) {
	return s.dir.AssignmentExists(ctx, user.ID, classID)
}

// schoolWideScope は学年主任と管理者のスコープです。
// 所属校のリソースすべてにアクセスでき、割り当てによる絞り込みはありません。
type schoolWideScope struct {
	dir Directory
}

func (s *schoolWideScope) accessibleIDs(ctx context.Context, user *models.User, kind ResourceKind) ([]int64, error) {
	switch kind {
	case KindStudent:
		return s.dir.StudentIDsBySchool(ctx, user.SchoolID)
	case KindClass:
		return s.dir.ClassIDsBySchool(ctx, user.SchoolID)
	default:
		return nil, nil
	}
}

func (s *schoolWideScope) canAccessInTenant(ctx context.Context, user *models.User, kind ResourceKind, id, classID int64) (bool, error) {
	return true, nil
}

// deniedScope は未知の役割に対する空のスコープです。
type deniedScope struct{}

func (deniedScope) accessibleIDs(ctx context.Context, user *models.User, kind ResourceKind) ([]int64, error) {
	return nil, nil
}

func (deniedScope) canAccessInTenant(ctx context.Context, user *models.User, kind ResourceKind, id, classID int64) (bool, error) {
	return false, nil
}
