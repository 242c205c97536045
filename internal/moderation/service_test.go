package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"apollocore/internal/audit"
	"apollocore/internal/cache"
	"apollocore/internal/common"
	"apollocore/internal/config"
	"apollocore/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	_ = logger.Init("error", "console", "stdout")
}

// fakeCacheStore 内存缓存存储，记录版本递增
type fakeCacheStore struct {
	versions map[string]int64
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{versions: make(map[string]int64)}
}

func (s *fakeCacheStore) Get(ctx context.Context, group, key string) ([]byte, bool) {
	return nil, false
}

func (s *fakeCacheStore) Set(ctx context.Context, group, key string, value []byte, ttl time.Duration) {
}

func (s *fakeCacheStore) Delete(ctx context.Context, group, key string) {}

func (s *fakeCacheStore) Current(ctx context.Context, group string) int64 {
	if v, ok := s.versions[group]; ok {
		return v
	}
	return 1
}

func (s *fakeCacheStore) Bump(ctx context.Context, group string) int64 {
	s.versions[group] = s.Current(ctx, group) + 1
	return s.versions[group]
}

type fixture struct {
	svc      *Service
	auditSvc *audit.Service
	db       *gorm.DB
	store    *fakeCacheStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:moderation_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MemberAccount{}, &ContentPost{}, &audit.AuditLog{}, &audit.ModerationLog{}))

	auditSvc := audit.NewService(db, &config.AuditConfig{Enabled: true, IPHashSalt: "test"})
	store := newFakeCacheStore()
	c := cache.New(store, store, 0)

	return &fixture{
		svc:      NewService(db, auditSvc, c),
		auditSvc: auditSvc,
		db:       db,
		store:    store,
	}
}

func (f *fixture) seedMember(t *testing.T, role string) *MemberAccount {
	t.Helper()
	m := &MemberAccount{DisplayName: "测试成员", Role: role, Status: MemberStatusActive}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *fixture) seedPost(t *testing.T, authorID string) *ContentPost {
	t.Helper()
	p := &ContentPost{AuthorID: authorID, Title: "待审内容", Status: PostStatusPending}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func TestApprovePost(t *testing.T) {
	ctx := context.Background()

	t.Run("通过审核并写审核日志", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		post := f.seedPost(t, f.seedMember(t, RoleMember).ID)

		approved, err := f.svc.ApprovePost(ctx, actor.ID, "203.0.113.5", post.ID, "内容合规")
		require.NoError(t, err)
		assert.Equal(t, PostStatusApproved, approved.Status)
		assert.Equal(t, "内容合规", approved.ReviewNote)

		logs, total, err := f.auditSvc.QueryModerationLogs(ctx, audit.Filter{Action: audit.ActionApprove}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, actor.ID, logs[0].ActorID)
		assert.Equal(t, RoleModerator, logs[0].ActorRole)
		assert.Equal(t, post.ID, logs[0].TargetID)
	})

	t.Run("递增core分组版本", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		post := f.seedPost(t, actor.ID)

		_, err := f.svc.ApprovePost(ctx, actor.ID, "", post.ID, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), f.store.versions[cache.GroupCore])
	})

	t.Run("内容不存在", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)

		_, err := f.svc.ApprovePost(ctx, actor.ID, "", "missing", "")
		var bizErr *common.BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, common.CodePostNotFound, bizErr.Code)
	})
}

func TestSuspendMember(t *testing.T) {
	ctx := context.Background()

	t.Run("停用成员并记录到期时间", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		target := f.seedMember(t, RoleMember)

		suspended, err := f.svc.SuspendMember(ctx, actor.ID, "203.0.113.5", target.ID, 7, "违规发言")
		require.NoError(t, err)
		assert.Equal(t, MemberStatusSuspended, suspended.Status)
		require.NotNil(t, suspended.SuspendedUntil)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 7), *suspended.SuspendedUntil, time.Minute)

		// memberships 分组版本被递增
		assert.Equal(t, int64(2), f.store.versions[cache.GroupMemberships])
	})

	t.Run("角色快照不随后续变更", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		target := f.seedMember(t, RoleMember)

		_, err := f.svc.SuspendMember(ctx, actor.ID, "", target.ID, 3, "")
		require.NoError(t, err)

		// 操作者此后升级为管理员，历史日志保持写入时刻的角色
		require.NoError(t, f.db.Model(&MemberAccount{}).
			Where("id = ?", actor.ID).
			Update("role", RoleAdmin).Error)

		logs, _, err := f.auditSvc.QueryModerationLogs(ctx, audit.Filter{ActorID: actor.ID}, 50, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, RoleModerator, logs[0].ActorRole)
	})

	t.Run("管理员账号不可被停用", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		admin := f.seedMember(t, RoleAdmin)

		_, err := f.svc.SuspendMember(ctx, actor.ID, "", admin.ID, 7, "")
		var bizErr *common.BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, common.CodeAdminProtected, bizErr.Code)

		// 状态未被改动
		var stored MemberAccount
		require.NoError(t, f.db.First(&stored, "id = ?", admin.ID).Error)
		assert.Equal(t, MemberStatusActive, stored.Status)
	})

	t.Run("天数必须为正", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		target := f.seedMember(t, RoleMember)

		for _, days := range []int{0, -1} {
			_, err := f.svc.SuspendMember(ctx, actor.ID, "", target.ID, days, "")
			var bizErr *common.BusinessError
			require.True(t, errors.As(err, &bizErr))
			assert.Equal(t, common.CodeInvalidDuration, bizErr.Code)
		}
	})

	t.Run("成员不存在", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)

		_, err := f.svc.SuspendMember(ctx, actor.ID, "", "missing", 7, "")
		var bizErr *common.BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, common.CodeMemberNotFound, bizErr.Code)
	})
}

func TestBlockMember(t *testing.T) {
	ctx := context.Background()

	t.Run("封禁成员并清除停用到期时间", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		target := f.seedMember(t, RoleMember)

		// 先停用再封禁
		_, err := f.svc.SuspendMember(ctx, actor.ID, "", target.ID, 7, "")
		require.NoError(t, err)

		blocked, err := f.svc.BlockMember(ctx, actor.ID, "", target.ID, "屡次违规")
		require.NoError(t, err)
		assert.Equal(t, MemberStatusBlocked, blocked.Status)
		assert.Nil(t, blocked.SuspendedUntil)

		var stored MemberAccount
		require.NoError(t, f.db.First(&stored, "id = ?", target.ID).Error)
		assert.Equal(t, MemberStatusBlocked, stored.Status)
		assert.Nil(t, stored.SuspendedUntil)
	})

	t.Run("管理员账号不可被封禁", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		admin := f.seedMember(t, RoleAdmin)

		_, err := f.svc.BlockMember(ctx, actor.ID, "", admin.ID, "")
		var bizErr *common.BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, common.CodeAdminProtected, bizErr.Code)
	})

	t.Run("审计事件同步写入", func(t *testing.T) {
		f := newFixture(t)
		actor := f.seedMember(t, RoleModerator)
		target := f.seedMember(t, RoleMember)

		_, err := f.svc.BlockMember(ctx, actor.ID, "203.0.113.5", target.ID, "spam")
		require.NoError(t, err)

		events, total, err := f.auditSvc.QueryAuditLogs(ctx, audit.Filter{EventType: audit.EventModerationBlock}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, target.ID, events[0].TargetID)
		// 原始 IP 不出现在事件中
		assert.NotEqual(t, "203.0.113.5", events[0].ActorIPHash)
	})
}
