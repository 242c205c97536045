// Package roles 提供角色标识的一次性迁移
package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apollocore/internal/audit"
	"apollocore/internal/logger"
	"apollocore/internal/moderation"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CurrentSchemaVersion 角色标识方案的当前版本
// 每次引入新的废弃映射时递增
const CurrentSchemaVersion = 2

// schemaVersionKey 迁移进度在设置表中的键
const schemaVersionKey = "roles_schema_version"

// deprecatedRoles 废弃角色到规范角色的映射
var deprecatedRoles = map[string]string{
	"co_producer":      moderation.RoleProducer,
	"dj_resident":      moderation.RoleDJ,
	"moderator_legacy": moderation.RoleModerator,
}

// AppSetting 键值设置表，迁移进度标记存放于此
type AppSetting struct {
	Key       string    `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (AppSetting) TableName() string {
	return "apollo_settings"
}

// Migrator 角色标识迁移执行器
type Migrator struct {
	db       *gorm.DB
	auditSvc *audit.Service
}

// NewMigrator 创建迁移执行器
func NewMigrator(db *gorm.DB, auditSvc *audit.Service) *Migrator {
	return &Migrator{db: db, auditSvc: auditSvc}
}

// AutoMigrate 迁移设置表结构
func (m *Migrator) AutoMigrate() error {
	return m.db.AutoMigrate(&AppSetting{})
}

// storedVersion 读取已完成的迁移版本，缺失记录按 0 处理
func (m *Migrator) storedVersion(ctx context.Context) (int, error) {
	var setting AppSetting
	err := m.db.WithContext(ctx).First(&setting, "key = ?", schemaVersionKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version int
	if _, err := fmt.Sscanf(setting.Value, "%d", &version); err != nil {
		return 0, nil
	}
	return version, nil
}

// Run 执行角色标识迁移
//
// 版本标记只向前推进：已完成的版本不会重复执行，可在每次启动时安全调用。
// 迁移在单个事务内完成，改写与版本标记要么同时生效要么同时回滚。
func (m *Migrator) Run(ctx context.Context) error {
	version, err := m.storedVersion(ctx)
	if err != nil {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	if version >= CurrentSchemaVersion {
		logger.Debug("角色标识迁移已是最新版本",
			zap.Int("version", version),
		)
		return nil
	}

	var migrated int64
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for deprecated, canonical := range deprecatedRoles {
			result := tx.Model(&moderation.MemberAccount{}).
				Where("role = ?", deprecated).
				Update("role", canonical)
			if result.Error != nil {
				return fmt.Errorf("迁移角色 %s 失败: %w", deprecated, result.Error)
			}
			migrated += result.RowsAffected
		}

		setting := AppSetting{
			Key:   schemaVersionKey,
			Value: fmt.Sprintf("%d", CurrentSchemaVersion),
		}
		if err := tx.Save(&setting).Error; err != nil {
			return fmt.Errorf("更新迁移版本失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("角色标识迁移完成",
		zap.Int("from_version", version),
		zap.Int("to_version", CurrentSchemaVersion),
		zap.Int64("migrated", migrated),
	)

	m.auditSvc.LogEvent(ctx, audit.Entry{
		EventType: audit.EventRoleMigration,
		Severity:  audit.SeverityInfo,
		Message:   "角色标识迁移完成",
		Context: map[string]any{
			"from_version": version,
			"to_version":   CurrentSchemaVersion,
			"migrated":     migrated,
		},
	})

	return nil
}
