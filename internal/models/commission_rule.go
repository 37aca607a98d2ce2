package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// CommissionTier 阶梯佣金档位
type CommissionTier struct {
	MinAmount Money  `json:"min_amount"` // 档位下限（含）
	MaxAmount Money  `json:"max_amount"` // 档位上限（不含，0 表示不封顶）
	Rate      Money  `json:"rate"`       // 档位佣金比例（百分比）
	Label     string `json:"label"`      // 档位名称
}

// CommissionTiers 阶梯档位列表（按 MinAmount 升序存储）
type CommissionTiers []CommissionTier

// Value 实现 driver.Valuer 接口
func (t CommissionTiers) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan 实现 sql.Scanner 接口
func (t *CommissionTiers) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return nil
	}
}

// CommissionRule 佣金规则
//
// 同一时刻对 (product, category, vendor) 三元组只有一条规则生效，
// 解析顺序 product -> category(含祖先) -> vendor -> platform。
type CommissionRule struct {
	ID                   uint            `gorm:"primarykey" json:"id"`                               // 主键
	Scope                string          `gorm:"type:varchar(20);not null;index" json:"scope"`       // 作用域
	ScopeRef             *uint           `gorm:"index" json:"scope_ref,omitempty"`                   // 作用对象ID（platform 为空）
	RuleType             string          `gorm:"type:varchar(20);not null" json:"rule_type"`         // 规则类型
	Value                Money           `gorm:"type:decimal(10,2);not null;default:0" json:"value"` // 固定金额或百分比
	Tiers                CommissionTiers `gorm:"type:json" json:"tiers,omitempty"`                   // 阶梯档位
	IncludeSubcategories bool            `gorm:"not null" json:"include_subcategories"`              // 类目规则是否覆盖子类目
	IsActive             bool            `gorm:"not null;index" json:"is_active"`                    // 启用状态
	StartAt              *time.Time      `gorm:"index" json:"start_at,omitempty"`                    // 生效时间（空为无限早）
	EndAt                *time.Time      `gorm:"index" json:"end_at,omitempty"`                      // 失效时间（空为无限晚）
	Priority             int             `gorm:"not null;default:0;index" json:"priority"`           // 同作用域内优先级，大者优先
	Remark               string          `gorm:"type:varchar(255)" json:"remark"`                    // 备注
	CreatedAt            time.Time       `json:"created_at"`                                         // 创建时间
	UpdatedAt            time.Time       `gorm:"index" json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (CommissionRule) TableName() string {
	return "commission_rules"
}

// ActiveAt 判断规则在指定时刻是否处于有效期内
func (r CommissionRule) ActiveAt(at time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.StartAt != nil && at.Before(*r.StartAt) {
		return false
	}
	if r.EndAt != nil && !at.Before(*r.EndAt) {
		return false
	}
	return true
}
